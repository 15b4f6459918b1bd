// Package vfs builds a FAT32 volume that holds one WAV file per audio
// track. Only the file system structures live in the image; track data is
// read from the disc when the head unit asks for a block inside a track.
package vfs

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/disk"
	"github.com/diskfs/go-diskfs/filesystem"
	"github.com/diskfs/go-diskfs/filesystem/fat32"
	"github.com/diskfs/go-diskfs/partition/mbr"
	"github.com/rabidaudio/cdplayer/cd"
)

const DiskSize = 700 * fat32.MB
const SectorSize = 512

// Filesystem represents a virtual FAT32 filesystem containing WAV files
// corresponding to the tracks on the CD.
type Filesystem struct {
	fs      filesystem.FileSystem
	Path    string
	Size    int64
	catalog *cd.Catalog
	dir     string
	closefn func() error
}

// sanitizeName takes a file name and converts it to DOS format
// by uppercasing, limiting to ASCII letters, and triming to 8 chars
func sanitizeName(name string) string {
	// https://en.wikipedia.org/wiki/8.3_filename
	newName := make([]rune, 0, 8)
	for _, r := range strings.ToUpper(name) {
		if len(newName) == 8 {
			break
		}
		if r >= 'A' && r <= 'Z' {
			newName = append(newName, r)
		}
	}
	return string(newName)
}

// TrackSize is the size of the WAV file for t.
func TrackSize(t cd.Track) int64 {
	return WavHeaderLen + int64(t.LengthSectors())*cd.BytesPerSector
}

// Create a new filesystem of size bytes. Data is backed by a temporary
// file. Be sure to Close() the Filesystem after use.
func Create(size int64) (*Filesystem, error) {
	tmpdir, err := os.MkdirTemp("", "cdplayer")
	if err != nil {
		return nil, err
	}
	dskimg := tmpdir + "/disk.img"
	dsk, err := diskfs.Create(dskimg, size, diskfs.SectorSizeDefault)
	if err != nil {
		_ = os.RemoveAll(tmpdir)
		return nil, err
	}

	// create an MBR with one partition
	table := &mbr.Table{
		LogicalSectorSize:  SectorSize,
		PhysicalSectorSize: SectorSize,
		Partitions: []*mbr.Partition{
			{
				Bootable: false,
				Type:     mbr.Linux,
				Start:    0,
				Size:     uint32(size / SectorSize),
			},
		},
	}
	if err := dsk.Partition(table); err != nil {
		_ = os.RemoveAll(tmpdir)
		return nil, err
	}
	fatfs, err := dsk.CreateFilesystem(disk.FilesystemSpec{
		Partition:   1,
		FSType:      filesystem.TypeFat32,
		VolumeLabel: "VIRTUALCD",
	})
	if err != nil {
		_ = os.RemoveAll(tmpdir)
		return nil, err
	}

	closefn := func() error {
		if err := fatfs.Close(); err != nil {
			return err
		}
		return os.RemoveAll(tmpdir)
	}

	return &Filesystem{
		Path:    dskimg,
		Size:    size,
		fs:      fatfs,
		closefn: closefn,
	}, nil
}

// LoadCatalog creates a WAV file for every track of c, in a directory
// named after the disc title when it has one.
func (f *Filesystem) LoadCatalog(c *cd.Catalog) error {
	if f.catalog != nil {
		return fmt.Errorf("vfs: current disc not ejected")
	}

	dir := dirName(c.DiscText(cd.TextTitle))
	if dir != "" {
		if err := f.fs.Mkdir(dir); err != nil {
			return err
		}
	}

	for _, t := range c.Tracks() {
		fname := trackPath(dir, t)
		file, err := f.fs.OpenFile(fname, os.O_CREATE|os.O_RDWR)
		if err != nil {
			return fmt.Errorf("vfs: create track %v: %w", fname, err)
		}
		if _, err := file.Write(wavHeader(t)); err != nil {
			return fmt.Errorf("vfs: write header %v: %w", fname, err)
		}

		// NOTE: rather than copy zeros for the whole track, seek to the
		// last byte and write only that. The clusters in between are
		// allocated but never written.
		if _, err := file.Seek(TrackSize(t)-1, io.SeekStart); err != nil {
			return err
		}
		if _, err := file.Write([]byte{0}); err != nil {
			return fmt.Errorf("vfs: size %v: %w", fname, err)
		}
		if err := file.Close(); err != nil {
			return err
		}
	}
	f.catalog = c
	f.dir = dir
	return nil
}

func dirName(title string) string {
	name := sanitizeName(title)
	if name != "" {
		name = "/" + name
	}
	return name
}

func trackPath(dir string, t cd.Track) string {
	return fmt.Sprintf("%v/TRACK%02d.WAV", dir, t.TrackNum)
}

// TrackRange is where a track file landed on the volume.
type TrackRange struct {
	Track      cd.Track
	Size       int64
	DiskRanges []fat32.DiskRange
}

// TrackRanges returns the block bounds over which the track files are
// placed, in catalog order.
func (f *Filesystem) TrackRanges() ([]TrackRange, error) {
	if f.catalog == nil {
		return nil, fmt.Errorf("vfs: no disc loaded")
	}

	tracks := f.catalog.Tracks()
	ranges := make([]TrackRange, len(tracks))
	for i, t := range tracks {
		tf, err := f.fs.OpenFile(trackPath(f.dir, t), os.O_RDONLY)
		if err != nil {
			return nil, err
		}
		fattf, ok := tf.(*fat32.File)
		if !ok {
			_ = tf.Close()
			return nil, fmt.Errorf("vfs: not a fat32 file")
		}
		dr, err := fattf.GetDiskRanges()
		_ = tf.Close()
		if err != nil {
			return nil, err
		}
		ranges[i] = TrackRange{Track: t, Size: TrackSize(t), DiskRanges: dr}
	}
	return ranges, nil
}

// Catalog returns the loaded disc, or nil.
func (f *Filesystem) Catalog() *cd.Catalog {
	return f.catalog
}

// Eject deletes all files from the filesystem.
func (f *Filesystem) Eject() error {
	if f.catalog == nil {
		return nil
	}
	for _, t := range f.catalog.Tracks() {
		if err := f.fs.Remove(trackPath(f.dir, t)); err != nil {
			return err
		}
	}
	if f.dir != "" {
		if err := f.fs.Remove(f.dir); err != nil {
			return err
		}
	}
	f.catalog = nil
	f.dir = ""
	return nil
}

func (f *Filesystem) Close() error {
	ejectErr := f.Eject()
	if err := f.closefn(); err != nil {
		return err
	}
	return ejectErr
}
