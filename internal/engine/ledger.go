package engine

// ledger.go — placement ledger: dedup de condition ids ya actuados.
//
// Regla de expiración, por entrada:
//   - con eventTime parseable: retener iff now <= eventTime + grace
//     (el TTL se ignora — la entrada expira respecto al evento, no al
//     momento del placement)
//   - sin eventTime usable: retener iff now - placedAt <= ttl
//
// Un mercado solo vuelve a considerarse cuando su evento empezó (más la
// gracia) o, sin evento conocido, tras el cool-down plano.

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/polywhaler/polywhaler/internal/domain"
)

// Ledger es el mapa en memoria de condition id → procedencia.
type Ledger map[string]domain.PlacementRecord

// NormalizeLedger reconstruye el ledger desde el documento persistido,
// tolerando la forma legacy (lista plana de condition ids).
func NormalizeLedger(doc domain.StateDocument, now int64) Ledger {
	ledger := make(Ledger)

	if len(doc.PlacedMeta) > 0 {
		for conditionID, raw := range doc.PlacedMeta {
			if conditionID == "" {
				continue
			}
			placedAt, ok := coerceEpoch(raw.PlacedAt)
			if !ok {
				// placedAt ilegible nunca causa expiración inmediata
				placedAt = now
			}
			ledger[conditionID] = domain.PlacementRecord{
				PlacedAt:  placedAt,
				EventTime: raw.EventTime,
			}
		}
		return ledger
	}

	for _, conditionID := range doc.Placed {
		if conditionID == "" {
			continue
		}
		ledger[conditionID] = domain.PlacementRecord{PlacedAt: now}
	}
	return ledger
}

// PruneLedger aplica las reglas de expiración y devuelve el ledger vivo.
func PruneLedger(ledger Ledger, now, ttlSeconds, eventGraceSeconds int64) Ledger {
	pruned := make(Ledger, len(ledger))
	for conditionID, rec := range ledger {
		if eventTS, ok := ParseEventTime(rec.EventTime); ok {
			if now <= eventTS+eventGraceSeconds {
				pruned[conditionID] = rec
			}
			continue
		}
		placedAt := rec.PlacedAt
		if placedAt <= 0 {
			placedAt = now
		}
		if now-placedAt <= ttlSeconds {
			pruned[conditionID] = rec
		}
	}
	return pruned
}

var digitsOnly = regexp.MustCompile(`^\d+$`)

// ParseEventTime interpreta un event time en cualquiera de las formas que
// devuelve el feed: epoch en segundos, epoch en milisegundos (detectado
// por magnitud > 1e12), o texto ISO-8601. Una "Z" final se trata como UTC
// y los timestamps sin zona se asumen UTC.
func ParseEventTime(raw any) (int64, bool) {
	switch v := raw.(type) {
	case nil:
		return 0, false
	case float64:
		return epochFromFloat(v)
	case int64:
		return epochFromFloat(float64(v))
	case int:
		return epochFromFloat(float64(v))
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return epochFromFloat(f)
	case string:
		return parseEventTimeText(v)
	default:
		return 0, false
	}
}

func epochFromFloat(value float64) (int64, bool) {
	if value > 1e12 {
		value = value / 1000.0
	}
	if value <= 0 {
		return 0, false
	}
	return int64(value), true
}

func parseEventTimeText(text string) (int64, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}
	if digitsOnly.MatchString(text) {
		value, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return 0, false
		}
		if value > 1_000_000_000_000 {
			value = value / 1000
		}
		if value <= 0 {
			return 0, false
		}
		return value, true
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, text, time.UTC); err == nil {
			return t.Unix(), true
		}
	}
	return 0, false
}

// coerceEpoch convierte un placedAt persistido (número o string) a epoch.
func coerceEpoch(raw any) (int64, bool) {
	switch v := raw.(type) {
	case float64:
		if v <= 0 {
			return 0, false
		}
		return int64(v), true
	case int64:
		if v <= 0 {
			return 0, false
		}
		return v, true
	case json.Number:
		n, err := v.Int64()
		if err != nil || n <= 0 {
			return 0, false
		}
		return n, true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil || n <= 0 {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
