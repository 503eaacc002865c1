package pairing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSingleCandidate(t *testing.T) {
	p, err := Parse("zelara://pair?ip=192.168.0.12&port=8737&token=abc123")
	require.NoError(t, err)
	require.Equal(t, 8737, p.Port)
	require.Equal(t, "abc123", p.Token)
	require.Len(t, p.Candidates, 1)
	require.Equal(t, "192.168.0.12:8737", p.Candidates[0].Addr())
}

func TestParsePreservesCandidateOrder(t *testing.T) {
	p, err := Parse("zelara://pair?ip=192.168.0.12&ip=10.42.0.1&port=8737&token=t")
	require.NoError(t, err)
	require.Len(t, p.Candidates, 2)
	require.Equal(t, "192.168.0.12", p.Candidates[0].Host)
	require.Equal(t, "10.42.0.1", p.Candidates[1].Host)
}

func TestParseRejectsMalformedPayloads(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want error
	}{
		{"wrong host", "zelara://link?ip=1.2.3.4&port=80&token=t", ErrBadScheme},
		{"no scheme", "pair?ip=1.2.3.4&port=80&token=t", ErrBadScheme},
		{"no ip", "zelara://pair?port=80&token=t", ErrMissingAddr},
		{"blank ip", "zelara://pair?ip=&port=80&token=t", ErrBadAddr},
		{"no port", "zelara://pair?ip=1.2.3.4&token=t", ErrMissingPort},
		{"port zero", "zelara://pair?ip=1.2.3.4&port=0&token=t", ErrBadPort},
		{"port huge", "zelara://pair?ip=1.2.3.4&port=70000&token=t", ErrBadPort},
		{"port text", "zelara://pair?ip=1.2.3.4&port=http&token=t", ErrBadPort},
		{"no token", "zelara://pair?ip=1.2.3.4&port=80", ErrMissingToken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.raw)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestEncodeParseRoundTrip(t *testing.T) {
	in := &Payload{
		Candidates: []Candidate{{Host: "192.168.0.12", Port: 8737}, {Host: "10.42.0.1", Port: 8737}},
		Port:       8737,
		Token:      "s3cret",
	}
	out, err := Parse(in.Encode("zelara"))
	require.NoError(t, err)
	require.Equal(t, in.Port, out.Port)
	require.Equal(t, in.Token, out.Token)
	require.Equal(t, in.Candidates, out.Candidates)
}

func TestParseIPv6Candidate(t *testing.T) {
	p, err := Parse("zelara://pair?ip=fe80::1&port=8737&token=t")
	require.NoError(t, err)
	require.Equal(t, "[fe80::1]:8737", p.Candidates[0].Addr())
}
