package transition

import (
	"embed"
	"io/fs"
)

// embeddedAssets contains the bundled transition assets, one TOML file per
// animated kind.
//
//go:embed assets/*.toml
var embeddedAssets embed.FS

// BundledAssets returns the bundled assets rooted at the asset directory.
func BundledAssets() fs.FS {
	sub, err := fs.Sub(embeddedAssets, "assets")
	if err != nil {
		// Unreachable: the embed pattern includes the directory.
		panic(err)
	}
	return sub
}
