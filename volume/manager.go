// Package volume binds a FAT-family volume on a block device and gives read-only
// access to the files on it.
//
// A [Manager] holds at most one bound volume. Binding always starts by discarding
// the previous volume, and any failure leaves the manager unbound, so file
// operations never see a half-validated volume.
package volume

import (
	"fmt"
	"io"

	"github.com/dargueta/fatbind"
	"github.com/dargueta/fatbind/diskio"
	"github.com/dargueta/fatbind/engine"
	"github.com/dargueta/fatbind/file_systems/fat"
	"github.com/dargueta/fatbind/partition"
	"github.com/sirupsen/logrus"
)

// DefaultBootPartition is the partition boards conventionally boot from when no
// index is given.
const DefaultBootPartition = 1

// Options configures a [Manager]. Zero values select the defaults.
type Options struct {
	// Engine interprets the volume. Defaults to the read-only FAT driver.
	Engine engine.Engine
	// Table locates partitions for [Manager.RegisterDevice]. Defaults to
	// [partition.AutoTable].
	Table partition.Table
	// Logger receives bind and read diagnostics. Defaults to discarding them.
	Logger logrus.FieldLogger
}

// Binding describes the currently bound volume.
type Binding struct {
	Device    fatbind.BlockDevice
	Partition partition.Descriptor
	Kind      fatbind.FSKind
}

// Manager owns the volume binding and the file operations built on it. It is not
// safe for concurrent use.
type Manager struct {
	engine  engine.Engine
	table   partition.Table
	log     logrus.FieldLogger
	adapter diskio.Adapter
	binding Binding
	bound   bool
}

func discardLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// New creates an unbound manager.
func New(options Options) *Manager {
	manager := &Manager{
		engine: options.Engine,
		table:  options.Table,
		log:    options.Logger,
	}
	if manager.engine == nil {
		manager.engine = fat.New()
	}
	if manager.table == nil {
		manager.table = partition.AutoTable{}
	}
	if manager.log == nil {
		manager.log = discardLogger()
	}
	return manager
}

// IsBound returns true if a volume is currently bound.
func (m *Manager) IsBound() bool {
	return m.bound
}

// Binding returns the current binding. The boolean is false if nothing is bound.
func (m *Manager) Binding() (Binding, bool) {
	return m.binding, m.bound
}

// Unbind discards the current volume, if any. The device is not touched.
func (m *Manager) Unbind() {
	m.reset()
}

// reset returns the manager to the unbound state. The engine is unmounted
// whenever a device was attached, since a failed mount may still have left state
// behind.
func (m *Manager) reset() {
	if m.adapter.Attached() {
		m.engine.Unmount()
	}
	m.adapter.Detach()
	m.binding = Binding{}
	m.bound = false
}

// RegisterDevice finds partition `index` on `device` and binds it. Index 0 binds
// the whole device when it has no partition table.
func (m *Manager) RegisterDevice(device fatbind.BlockDevice, index int) error {
	m.reset()
	if device == nil {
		return fatbind.ErrNoDevice
	}

	log := m.log.WithFields(logrus.Fields{
		"device":    device.DeviceID(),
		"partition": index,
	})

	descriptor, err := partition.Discover(device, m.table, index)
	if err != nil {
		log.WithError(err).Warnf("Partition %d not valid on device %d", index, device.DeviceID())
		return err
	}
	return m.bind(device, descriptor, log)
}

// Bind validates the volume in `descriptor` and makes it the bound volume.
func (m *Manager) Bind(device fatbind.BlockDevice, descriptor partition.Descriptor) error {
	m.reset()
	if device == nil {
		return fatbind.ErrNoDevice
	}

	log := m.log.WithFields(logrus.Fields{
		"device": device.DeviceID(),
		"start":  uint(descriptor.Start),
	})
	return m.bind(device, descriptor, log)
}

func (m *Manager) bind(
	device fatbind.BlockDevice,
	descriptor partition.Descriptor,
	log logrus.FieldLogger,
) (err error) {
	defer func() {
		if err != nil {
			m.reset()
			log.WithError(err).Warn("failed to bind volume")
		}
	}()

	m.adapter.Attach(device, descriptor)

	// One read feeds both checks.
	sector := make([]byte, device.BytesPerBlock())
	_, err = m.adapter.ReadBlocks(0, 1, sector)
	if err != nil {
		return fatbind.ErrNoValidVolume.WithMessage(
			fmt.Sprintf("can't read boot sector of device %d", device.DeviceID()),
		).Wrap(err)
	}

	err = CheckBootSignature(sector)
	if err != nil {
		return err
	}

	var tag Tag
	tag, err = DetectTag(sector)
	if err != nil {
		return err
	}

	kind, result := m.engine.Mount(&m.adapter)
	if !result.OK() {
		return translateMount(result)
	}
	if kind == fatbind.KindUnknown {
		kind = tag.Kind()
	}

	m.binding = Binding{
		Device:    device,
		Partition: descriptor,
		Kind:      kind,
	}
	m.bound = true

	log.WithFields(logrus.Fields{
		"kind": kind.String(),
		"tag":  tag.String(),
	}).Info("volume bound")
	return nil
}
