package ssl

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssuanceErrorClassifiesTimeouts(t *testing.T) {
	err := newIssuanceError(fmt.Errorf("acme: %w", context.DeadlineExceeded))
	assert.ErrorIs(t, err, ErrValidationTimeout)

	err = newIssuanceError(&net.DNSError{Err: "i/o timeout", IsTimeout: true})
	assert.ErrorIs(t, err, ErrValidationTimeout)

	err = newIssuanceError(errors.New("acme: error: 400 :: urn:ietf:params:acme:error:unauthorized"))
	assert.NotErrorIs(t, err, ErrValidationTimeout)

	var issErr *IssuanceError
	require.ErrorAs(t, err, &issErr)
}
