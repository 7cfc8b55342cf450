package tray

import (
	"embed"
	"fmt"
	"os"
	"runtime"
)

//go:embed assets/*.png assets/*.ico
var assets embed.FS

// Images holds the ON and OFF icon bytes.
type Images struct {
	On  []byte
	Off []byte
}

// LoadImages returns the embedded icons for this platform, replaced by the
// files at onPath or offPath when those are set.
func LoadImages(onPath, offPath string) (Images, error) {
	ext := "png"
	if runtime.GOOS == "windows" {
		ext = "ico"
	}

	var imgs Images
	var err error
	if imgs.On, err = loadIcon(onPath, "assets/on."+ext); err != nil {
		return Images{}, err
	}
	if imgs.Off, err = loadIcon(offPath, "assets/off."+ext); err != nil {
		return Images{}, err
	}
	return imgs, nil
}

func loadIcon(override, embedded string) ([]byte, error) {
	if override != "" {
		data, err := os.ReadFile(override)
		if err != nil {
			return nil, fmt.Errorf("failed to read icon %s: %w", override, err)
		}
		return data, nil
	}
	return assets.ReadFile(embedded)
}
