package policy

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lanwatch/internal/domain"
)

func TestNewClassifier(t *testing.T) {
	tests := []struct {
		name    string
		start   string
		end     string
		wantErr bool
	}{
		{"ipv4 range", "192.168.1.5", "192.168.1.10", false},
		{"single address", "10.0.0.1", "10.0.0.1", false},
		{"ipv6 range", "fd00::1", "fd00::ff", false},
		{"mapped start", "::ffff:10.0.0.1", "10.0.0.9", false},
		{"unset", "", "", false},
		{"missing end", "10.0.0.1", "", true},
		{"bad start", "10.0.0", "10.0.0.9", true},
		{"mixed families", "10.0.0.1", "fd00::1", true},
		{"reversed", "10.0.0.9", "10.0.0.1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClassifier(tt.start, tt.end)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, c)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, c)
		})
	}
}

func TestClassify(t *testing.T) {
	c, err := NewClassifier("192.168.1.5", "192.168.1.10")
	require.NoError(t, err)

	tests := []struct {
		address string
		want    domain.Status
	}{
		{"192.168.1.4", domain.StatusAllowed},
		{"192.168.1.5", domain.StatusBlocked},
		{"192.168.1.7", domain.StatusBlocked},
		{"192.168.1.10", domain.StatusBlocked},
		{"192.168.1.11", domain.StatusAllowed},
		{"192.168.2.7", domain.StatusAllowed},
		{"::ffff:192.168.1.6", domain.StatusBlocked},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			got, err := c.Classify(tt.address)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyUsesNumericOrder(t *testing.T) {
	// 192.168.1.100 sorts between .10 and .11 lexically but not numerically
	c, err := NewClassifier("192.168.1.9", "192.168.1.11")
	require.NoError(t, err)

	got, err := c.Classify("192.168.1.100")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAllowed, got)
}

func TestClassifyErrors(t *testing.T) {
	c, err := NewClassifier("10.0.0.1", "10.0.0.9")
	require.NoError(t, err)

	_, err = c.Classify("not-an-ip")
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)

	_, err = c.Classify("fd00::5")
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)
}

func TestClassifyUnset(t *testing.T) {
	var zero Classifier
	got, err := zero.Classify("10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAllowed, got)
	assert.False(t, zero.Configured())

	var nilClassifier *Classifier
	got, err = nilClassifier.Classify("fd00::5")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAllowed, got)

	_, err = zero.Classify("garbage")
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)
}

func TestClassifyConcurrent(t *testing.T) {
	c, err := NewClassifier("10.0.0.1", "10.0.0.9")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				st, err := c.Classify("10.0.0.5")
				assert.NoError(t, err)
				assert.Equal(t, domain.StatusBlocked, st)
			}
		}()
	}
	wg.Wait()
}
