package legacy

import (
	"embed"
	"io/fs"
)

//go:embed seeds/*.json
var seedFiles embed.FS

// Seeds returns the embedded starter prompts in the legacy JSON format.
func Seeds() fs.FS {
	sub, err := fs.Sub(seedFiles, "seeds")
	if err != nil {
		panic(err) // unreachable: the subdirectory name is a compile-time constant
	}
	return sub
}

// ImportSeeds loads the embedded starter prompts through the standard import
// path. Prompt types that already exist are left untouched.
func (im *Importer) ImportSeeds() *Result {
	return im.ImportFS(Seeds(), nil)
}
