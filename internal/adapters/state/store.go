package state

// store.go — persistencia del estado del bot (bankroll + ledger) como
// documento JSON.
//
// El save es atómico: se escribe a un archivo temporal en el mismo
// directorio y se promueve con rename, así un crash a mitad de escritura
// nunca corrompe la versión válida anterior. Un archivo ausente o
// corrupto al cargar produce el documento vacío (el engine aplica los
// defaults), nunca un error fatal.

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/polywhaler/polywhaler/internal/domain"
)

// FileStore implementa ports.StateStore sobre un archivo JSON.
type FileStore struct {
	path string
}

// NewFileStore crea el store en la ruta dada.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load lee el documento persistido. Las formas legacy se devuelven tal
// cual; la migración es responsabilidad del engine y el archivo en disco
// no se reescribe hasta el siguiente Save.
func (s *FileStore) Load() (domain.StateDocument, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.StateDocument{}, nil
		}
		slog.Warn("state file unreadable, starting fresh", "path", s.path, "err", err)
		return domain.StateDocument{}, nil
	}

	var doc domain.StateDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		slog.Warn("state file corrupt, starting fresh", "path", s.path, "err", err)
		return domain.StateDocument{}, nil
	}
	return doc, nil
}

// Save escribe el estado de forma atómica (temp + rename).
func (s *FileStore) Save(state domain.BotState) error {
	doc := documentFromState(state)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("state.Save: marshal: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("state.Save: mkdir %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("state.Save: temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("state.Save: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("state.Save: close: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("state.Save: rename: %w", err)
	}
	return nil
}

// documentFromState serializa el estado a la forma en disco. La lista
// `placed` se mantiene ordenada y redundante con placedMeta por
// compatibilidad con lectores viejos.
func documentFromState(state domain.BotState) domain.StateDocument {
	bankroll := state.Bankroll
	doc := domain.StateDocument{
		Bankroll:   &bankroll,
		Placed:     make([]string, 0, len(state.Ledger)),
		PlacedMeta: make(map[string]domain.RawRecord, len(state.Ledger)),
	}
	for conditionID, rec := range state.Ledger {
		doc.Placed = append(doc.Placed, conditionID)
		doc.PlacedMeta[conditionID] = domain.RawRecord{
			PlacedAt:  rec.PlacedAt,
			EventTime: rec.EventTime,
		}
	}
	sort.Strings(doc.Placed)
	return doc
}
