package snmp

import (
	"testing"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoSNMPFactoryV2c(t *testing.T) {
	factory := GoSNMPFactory{Port: 1161, Timeout: time.Second, Retries: 2, MaxOIDs: 30}

	req := NewRequest(KindGet, Auth{Version: Version2c, Community: "public"},
		Target{Address: "10.0.0.1", Timeout: 3 * time.Second}, []string{".1.1"})

	client, err := factory.NewClient(req)
	require.NoError(t, err)

	gs, ok := client.(goSNMPClient)
	require.True(t, ok)
	assert.Equal(t, gosnmp.Version2c, gs.Version)
	assert.Equal(t, "public", gs.Community)
	assert.Equal(t, uint16(1161), gs.Port)
	assert.Equal(t, 3*time.Second, gs.Timeout)
	assert.Equal(t, 2, gs.Retries)
	assert.Equal(t, 30, gs.MaxOids)
	require.NoError(t, client.Close())
}

func TestGoSNMPFactoryV3Flags(t *testing.T) {
	tests := []struct {
		name  string
		auth  Auth
		flags gosnmp.SnmpV3MsgFlags
	}{
		{"noauth", Auth{Version: Version3, Username: "u"}, gosnmp.NoAuthNoPriv},
		{"auth", Auth{Version: Version3, Username: "u", AuthProtocol: "sha256", AuthPassword: "p"}, gosnmp.AuthNoPriv},
		{"authpriv", Auth{Version: Version3, Username: "u", AuthProtocol: "SHA", AuthPassword: "p", PrivacyProtocol: "aes", PrivacyPassword: "q"}, gosnmp.AuthPriv},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := GoSNMPFactory{}.NewClient(NewRequest(KindGet, tt.auth, Target{Address: "10.0.0.1"}, []string{".1"}))
			require.NoError(t, err)

			gs, ok := client.(goSNMPClient)
			require.True(t, ok)
			assert.Equal(t, gosnmp.Version3, gs.Version)
			assert.Equal(t, tt.flags, gs.MsgFlags)
			assert.Equal(t, uint16(defaultSNMPPort), gs.Port)

			usm, ok := gs.SecurityParameters.(*gosnmp.UsmSecurityParameters)
			require.True(t, ok)
			assert.Equal(t, "u", usm.UserName)
		})
	}
}

func TestGoSNMPFactoryRejectsBadInput(t *testing.T) {
	_, err := GoSNMPFactory{}.NewClient(NewRequest(KindGet, Auth{Version: Version2c}, Target{}, []string{".1"}))
	require.ErrorIs(t, err, errNoAddress)

	_, err = GoSNMPFactory{}.NewClient(NewRequest(KindGet, Auth{Version: "9"}, Target{Address: "h"}, []string{".1"}))
	require.ErrorIs(t, err, ErrUnsupportedVersion)
}
