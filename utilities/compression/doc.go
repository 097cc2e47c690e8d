// Package compression reads and writes the compressed disk image format used for
// FAT volume fixtures.
//
// FAT images are mostly empty clusters and zero-filled allocation tables, so they
// compress extremely well. Images are run-length encoded first and then gzipped;
// gzip alone does noticeably worse on the long zero runs of a large FAT32 image.
//
// The run-length encoding is RLE8 as used by the BMP file format: if a byte B
// occurs N times where N >= 2, B is written twice, followed by a third (unsigned)
// byte giving how many additional times B occurred. For example:
//
//	WXXXXXXXXXXXXXXXYZZ
//	W XX 13 Y ZZ 0
//
// Runs longer than 257 bytes are split, so a run of 300 "X" becomes
// `XX 255 XX 41`. Because a byte doubles as its own escape, a byte occurring
// exactly twice takes three bytes.
package compression
