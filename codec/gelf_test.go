package codec

import (
	"encoding/json"
	"testing"

	"github.com/nicwaller/journalgelf"
	"github.com/nicwaller/journalgelf/severity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGELFCodec_Encode(t *testing.T) {
	msg := journalgelf.NewMessage("h1", `say "hi" <now>`).
		SetTimestamp(1385053862.3072).
		SetLevel(severity.Error)
	msg.SetExtra("zeta", "last")
	msg.Extra["__PID"] = json.Number("42")
	msg.SetExtra("team", "core")

	dat, err := GELF().Encode(msg)
	require.NoError(t, err)
	want := `{"version":"1.1","host":"h1","short_message":"say \"hi\" <now>","timestamp":1385053862.3072,"level":3,"__PID":42,"_team":"core","_zeta":"last"}`
	assert.Equal(t, want, string(dat))
}

func TestGELFCodec_OmitsUnset(t *testing.T) {
	dat, err := GELF().Encode(journalgelf.NewMessage("", "hello"))
	require.NoError(t, err)
	assert.Equal(t, `{"version":"1.1","host":"undefined","short_message":"hello"}`, string(dat))
}

func TestGELFCodec_ReservedID(t *testing.T) {
	msg := journalgelf.NewMessage("h1", "hello")
	assert.False(t, msg.SetExtra("id", "x"))
	msg.Extra["_id"] = "sneaky"
	dat, err := GELF().Encode(msg)
	require.NoError(t, err)
	assert.NotContains(t, string(dat), "_id")
}

func TestGELFCodec_UnrepresentableNumbers(t *testing.T) {
	msg := journalgelf.NewMessage("h1", "hello")
	msg.Extra["_big"] = json.Number("1e400")
	msg.Extra["_nan"] = json.Number("NaN")
	msg.Extra["_ok"] = json.Number("1.5")

	dat, err := GELF().Encode(msg)
	require.NoError(t, err)
	assert.Equal(t, `{"version":"1.1","host":"h1","short_message":"hello","_big":"1e400","_nan":"NaN","_ok":1.5}`, string(dat))
}

func TestGELFCodec_RoundTrip(t *testing.T) {
	codec := GELF()
	msg := journalgelf.NewMessage("h1", "line one\nline two").
		SetTimestamp(1700000000.123456).
		SetLevel(severity.Notice)
	msg.FullMessage = "full"
	msg.SetExtra("_SYSTEMD_UNIT", "sshd.service")
	msg.SetExtra("count", json.Number("12"))
	msg.SetExtra("ok", true)

	dat, err := codec.Encode(msg)
	require.NoError(t, err)
	got, err := codec.Decode(dat)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestGELFCodec_DecodeErrors(t *testing.T) {
	codec := GELF()
	_, err := codec.Decode([]byte(`{"version":"1.1"}`))
	assert.Error(t, err)
	_, err = codec.Decode([]byte(`[]`))
	assert.Error(t, err)
	_, err = codec.Decode([]byte(`{"short_message":"x","timestamp":"yesterday"}`))
	assert.Error(t, err)
}
