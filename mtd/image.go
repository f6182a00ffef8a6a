package mtd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// SidecarSuffix is appended to an image path to locate its geometry file.
const SidecarSuffix = ".flash.yaml"

// ImageGeometry is the geometry sidecar stored next to a NAND image file.
// Bad blocks cannot be represented in the raw image, so they live here.
type ImageGeometry struct {
	EBSize      int   `yaml:"eb_size"`
	MinIOSize   int   `yaml:"min_io_size"`
	SubpageSize int   `yaml:"subpage_size"`
	EBCount     int   `yaml:"eb_count"`
	BadAllowed  bool  `yaml:"bad_allowed"`
	BadBlocks   []int `yaml:"bad_blocks,omitempty"`
}

func (g ImageGeometry) info(path string) Info {
	return Info{
		Name:        filepath.Base(path),
		Type:        "image",
		MTDNum:      -1,
		EBSize:      g.EBSize,
		MinIOSize:   g.MinIOSize,
		SubpageSize: g.SubpageSize,
		EBCount:     g.EBCount,
		BadAllowed:  g.BadAllowed,
		Writable:    true,
	}
}

// ImageDevice is a flash device stored in a regular file, one eraseblock
// after another, without OOB data.
type ImageDevice struct {
	path string
	f    *os.File
	geom ImageGeometry
	info Info
	bad  map[int]bool
}

// CreateImage writes an erased image of the given geometry to path along
// with its sidecar. Blocks listed in g.BadBlocks start out bad.
func CreateImage(path string, g ImageGeometry) error {
	if err := g.info(path).Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil && !errors.Is(err, os.ErrExist) {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	blank := bytes.Repeat([]byte{0xFF}, g.EBSize)
	for eb := 0; eb < g.EBCount; eb++ {
		if _, err := f.WriteAt(blank, int64(eb)*int64(g.EBSize)); err != nil {
			return fmt.Errorf("write eraseblock %d: %w", eb, err)
		}
	}
	if err := f.Sync(); err != nil {
		return err
	}
	return writeSidecar(path, g)
}

// OpenImage opens an image created by CreateImage.
func OpenImage(path string) (*ImageDevice, error) {
	raw, err := os.ReadFile(path + SidecarSuffix)
	if err != nil {
		return nil, fmt.Errorf("read geometry: %w", err)
	}
	var g ImageGeometry
	if err := yaml.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path+SidecarSuffix, err)
	}
	info := g.info(path)
	if err := info.Validate(); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if st.Size() < info.Size() {
		f.Close()
		return nil, fmt.Errorf("image %s has %d bytes, geometry needs %d", path, st.Size(), info.Size())
	}

	d := &ImageDevice{path: path, f: f, geom: g, info: info, bad: make(map[int]bool)}
	for _, eb := range g.BadBlocks {
		d.bad[eb] = true
	}
	return d, nil
}

func writeSidecar(path string, g ImageGeometry) error {
	sort.Ints(g.BadBlocks)
	raw, err := yaml.Marshal(g)
	if err != nil {
		return err
	}
	return os.WriteFile(path+SidecarSuffix, raw, 0644)
}

// Close releases the image file.
func (d *ImageDevice) Close() error {
	return d.f.Close()
}

func (d *ImageDevice) off(eb, offset int) int64 {
	return int64(eb)*int64(d.info.EBSize) + int64(offset)
}

// Info implements Device.
func (d *ImageDevice) Info() Info { return d.info }

// Erase implements Device.
func (d *ImageDevice) Erase(eb int) error {
	if err := d.info.checkRange(eb, 0, 0); err != nil {
		return err
	}
	blank := bytes.Repeat([]byte{0xFF}, d.info.EBSize)
	if _, err := d.f.WriteAt(blank, d.off(eb, 0)); err != nil {
		return fmt.Errorf("erase eraseblock %d: %w", eb, err)
	}
	return nil
}

// Read implements Device.
func (d *ImageDevice) Read(eb, offset int, buf []byte) error {
	if err := d.info.checkRange(eb, offset, len(buf)); err != nil {
		return err
	}
	if _, err := d.f.ReadAt(buf, d.off(eb, offset)); err != nil {
		return fmt.Errorf("read eraseblock %d: %w", eb, err)
	}
	return nil
}

// Write implements Device. Like NAND programming, written bytes are
// ANDed with the current contents.
func (d *ImageDevice) Write(eb, offset int, buf []byte) error {
	if err := d.info.checkRange(eb, offset, len(buf)); err != nil {
		return err
	}
	cur := make([]byte, len(buf))
	if _, err := d.f.ReadAt(cur, d.off(eb, offset)); err != nil {
		return fmt.Errorf("write eraseblock %d: %w", eb, err)
	}
	for i, c := range buf {
		cur[i] &= c
	}
	if _, err := d.f.WriteAt(cur, d.off(eb, offset)); err != nil {
		return fmt.Errorf("write eraseblock %d: %w", eb, err)
	}
	return nil
}

// IsBad implements Device.
func (d *ImageDevice) IsBad(eb int) (bool, error) {
	if err := d.info.checkRange(eb, 0, 0); err != nil {
		return false, err
	}
	return d.bad[eb], nil
}

// MarkBad implements Device and records eb in the sidecar.
func (d *ImageDevice) MarkBad(eb int) error {
	if err := d.info.checkRange(eb, 0, 0); err != nil {
		return err
	}
	if !d.info.BadAllowed {
		return ErrBadBlocksUnsupported
	}
	if d.bad[eb] {
		return nil
	}
	d.bad[eb] = true
	d.geom.BadBlocks = append(d.geom.BadBlocks, eb)
	return writeSidecar(d.path, d.geom)
}

// Torture implements Device.
func (d *ImageDevice) Torture(eb int) error {
	return Torture(d, eb)
}
