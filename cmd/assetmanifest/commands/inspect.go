package commands

import (
	"fmt"
	"os"

	"git.home.luguber.info/inful/assetmanifest/internal/foundation/errors"
	"git.home.luguber.info/inful/assetmanifest/internal/manifest"
)

// InspectCmd implements the 'inspect' command.
type InspectCmd struct {
	Path string `arg:"" help:"Manifest file to read" type:"existingfile"`
	JSON bool   `help:"Print the manifest re-serialized instead of a table"`
}

func (i *InspectCmd) Run(g *Global, _ *CLI) error {
	data, err := os.ReadFile(i.Path)
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to read manifest").
			WithContext("path", i.Path).Build()
	}
	m, err := manifest.FromJSON(data)
	if err != nil {
		return err
	}
	out := g.out()
	if i.JSON {
		b, err := m.ToJSON()
		if err != nil {
			return err
		}
		_, err = out.Write(append(b, '\n'))
		return err
	}
	for _, e := range m.Entries() {
		_, _ = fmt.Fprintf(out, "%s\t%s\n", e.Name, e.Value)
	}
	hash, err := m.Hash()
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "%d entries, hash %s\n", m.Len(), hash)
	return nil
}
