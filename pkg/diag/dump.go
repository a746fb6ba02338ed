package diag

import (
	"diagflow/pkg/persist"
)

// Save writes the stored messages to path, choosing the format from its
// extension.
func (p *Pipeline) Save(path string) error {
	return persist.SaveFile(path, p.store.Messages())
}

// SaveCompressed writes the stored messages as gzip-compressed JSON.
func (p *Pipeline) SaveCompressed(path string) error {
	return persist.SaveFileFormat(path, persist.FormatJSONGzip, p.store.Messages())
}

// Load replaces the stored messages with the contents of a dump. When the
// dump holds more messages than fit, the newest are kept.
func (p *Pipeline) Load(path string) error {
	msgs, err := persist.LoadFile(path)
	if err != nil {
		return err
	}
	p.store.Replace(msgs)
	return nil
}
