// Package disks maintains a registry of named image profiles and helpers
// for creating blank image files. A profile pairs a block count with a
// default inode count, so tooling can create a sensibly-sized image by name
// instead of by raw numbers. Nothing in this module formats an image from a
// profile; the inode count is listed alongside the geometry only.
package disks

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/gocarina/gocsv"
	"github.com/ssfs-io/ssfs/vdisk"
)

//go:embed profiles.csv
var profilesCSV string

// ImageProfile describes one named image geometry.
type ImageProfile struct {
	Name        string `csv:"name"`
	Slug        string `csv:"slug"`
	TotalBlocks uint32 `csv:"total_blocks"`
	Inodes      int    `csv:"inodes"`
	Notes       string `csv:"notes"`
}

// TotalSizeBytes gives the size of the image file for this profile.
func (p *ImageProfile) TotalSizeBytes() int64 {
	return int64(p.TotalBlocks) * vdisk.SectorSize
}

// ListProfiles returns every registered profile.
func ListProfiles() ([]ImageProfile, error) {
	var profiles []ImageProfile
	err := gocsv.UnmarshalString(profilesCSV, &profiles)
	if err != nil {
		return nil, fmt.Errorf("broken embedded profile registry: %w", err)
	}
	return profiles, nil
}

// GetProfile looks a profile up by its slug.
func GetProfile(slug string) (ImageProfile, error) {
	profiles, err := ListProfiles()
	if err != nil {
		return ImageProfile{}, err
	}
	for _, profile := range profiles {
		if profile.Slug == slug {
			return profile, nil
		}
	}
	return ImageProfile{}, fmt.Errorf("no image profile named %q", slug)
}

// CreateBlankImage writes a zero-filled image file of the given number of
// blocks, the same thing `dd if=/dev/zero` would produce. It refuses to
// overwrite an existing file.
func CreateBlankImage(path string, totalBlocks uint32) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}

	if err := file.Truncate(int64(totalBlocks) * vdisk.SectorSize); err != nil {
		file.Close()
		os.Remove(path)
		return err
	}
	return file.Close()
}
