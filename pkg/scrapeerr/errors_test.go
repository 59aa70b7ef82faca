package scrapeerr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := Exhausted("failed to fetch page 3 after all strategies", Network("direct fetch", cause))

	assert.Equal(t, CodeFetchExhausted, CodeOf(err))
	assert.ErrorIs(t, err, cause)

	wrapped := fmt.Errorf("scrape run: %w", err)
	assert.Equal(t, CodeFetchExhausted, CodeOf(wrapped))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
}

func TestRetryability(t *testing.T) {
	assert.True(t, Network("dial", nil).IsRetryable())
	assert.True(t, HTTP(http.StatusForbidden, "blocked").IsRetryable())
	assert.True(t, ContentInvalid("too short").IsRetryable())
	assert.False(t, Parse("bad row", nil).IsRetryable())
}

func TestIsBotWall(t *testing.T) {
	assert.True(t, IsBotWall(HTTP(http.StatusForbidden, "blocked")))
	assert.False(t, IsBotWall(HTTP(http.StatusBadGateway, "down")))
	assert.False(t, IsBotWall(errors.New("plain")))
}

func TestBodyLooksLikeBotWall(t *testing.T) {
	assert.True(t, BodyLooksLikeBotWall("<title>Just a moment...</title>"))
	assert.True(t, BodyLooksLikeBotWall("window.cf_chl_opt = {}"))
	assert.True(t, BodyLooksLikeBotWall("Checking your browser - CloudFlare"))
	assert.False(t, BodyLooksLikeBotWall("<table>listings</table>"))
}
