package transport

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocalIP(t *testing.T) {
	ip := LocalIP()
	assert.NotNil(t, net.ParseIP(ip))
}
