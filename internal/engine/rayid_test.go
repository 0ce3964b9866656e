package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/polywhaler/polywhaler/internal/engine"
)

func TestExtractRayID_HTMLVariant(t *testing.T) {
	body := `<html><body><h1>Attention Required!</h1>
<p>Cloudflare Ray ID: <strong class="ray_id">8abc123def456789</strong></p></body></html>`

	assert.Equal(t, "8abc123def456789", engine.ExtractRayID(body))
}

func TestExtractRayID_BareVariant(t *testing.T) {
	assert.Equal(t, "93f1a2b3c4d5e6f7",
		engine.ExtractRayID("client error 403: blocked. Cloudflare Ray ID: 93f1a2b3c4d5e6f7 stop"))
}

func TestExtractRayID_NoMatch(t *testing.T) {
	assert.Empty(t, engine.ExtractRayID("server error 500: internal"))
	assert.Empty(t, engine.ExtractRayID(""))
	assert.Empty(t, engine.ExtractRayID("Cloudflare Ray ID: "))
}
