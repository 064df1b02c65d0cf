package provider

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ignite/outreach-orchestrator/internal/config"
)

func testPhantomBuster() *PhantomBuster {
	return NewPhantomBuster(config.ProviderConfig{
		APIKey:  "pb_test",
		BaseURL: "https://api.phantombuster.com/api/v2",
	})
}

func TestValidateConnectionRequest(t *testing.T) {
	p := testPhantomBuster()

	assert.NoError(t, p.ValidateConnectionRequest("Hi, loved your talk at SaaStr."))
	assert.NoError(t, p.ValidateConnectionRequest(strings.Repeat("a", 300)))

	// Trimming happens before the length check.
	assert.NoError(t, p.ValidateConnectionRequest("  "+strings.Repeat("a", 300)+"  "))
}

func TestValidateConnectionRequest_Rejections(t *testing.T) {
	p := testPhantomBuster()

	err := p.ValidateConnectionRequest("")
	assert.ErrorContains(t, err, "empty")

	err = p.ValidateConnectionRequest("   \n\t ")
	assert.ErrorContains(t, err, "empty")

	err = p.ValidateConnectionRequest(strings.Repeat("a", 301))
	assert.ErrorContains(t, err, "301")
	assert.ErrorContains(t, err, "300")

	var vErr *ProviderValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestValidateConnectionRequest_CountsRunesNotBytes(t *testing.T) {
	p := testPhantomBuster()
	// 300 multibyte characters are within the limit even at 600 bytes.
	assert.NoError(t, p.ValidateConnectionRequest(strings.Repeat("é", 300)))
	assert.Error(t, p.ValidateConnectionRequest(strings.Repeat("é", 301)))
}
