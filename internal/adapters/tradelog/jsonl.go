package tradelog

// jsonl.go — trade log append-only: un registro JSON por línea, uno por
// intento de placement (exitoso o degradado a paper). Nunca se reescribe
// ni compacta.

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/polywhaler/polywhaler/internal/domain"
)

// JSONL implementa ports.TradeLog sobre un archivo newline-delimited.
type JSONL struct {
	path string
}

// New crea el log en la ruta dada. El archivo se abre por append en cada
// escritura; el proceso es single-threaded así que no hay contención.
func New(path string) *JSONL {
	return &JSONL{path: path}
}

// Append serializa el trade y lo añade como una línea nueva.
func (l *JSONL) Append(trade domain.Trade) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("tradelog.Append: mkdir: %w", err)
	}

	data, err := json.Marshal(trade)
	if err != nil {
		return fmt.Errorf("tradelog.Append: marshal: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("tradelog.Append: open: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("tradelog.Append: write: %w", err)
	}
	return nil
}
