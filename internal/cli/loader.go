package cli

import (
	"github.com/kioku-game/kioku/internal/card"
	"github.com/kioku-game/kioku/internal/store"
)

// openStore opens the game database, preferring an explicit flag value
// over the configured path.
func (o *RootOptions) openStore(dbOverride string) (*store.Store, error) {
	path := o.cfg.DBPath
	if dbOverride != "" {
		path = dbOverride
	}
	return store.Open(path)
}

// loadCorpus loads the configured corpus, or the embedded default when
// none is configured.
func (o *RootOptions) loadCorpus() (*card.Corpus, error) {
	return card.Load(o.cfg.CorpusPath)
}
