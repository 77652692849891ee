package keyselect

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leifj/cdoc"
	"github.com/leifj/cdoc/cdoctest"
)

type staticSource []Credential

func (s staticSource) Credentials() ([]Credential, error) { return s, nil }

type failingSource struct{}

func (failingSource) Credentials() ([]Credential, error) { return nil, errors.New("token removed") }

func recipientsOf(t *testing.T, ids ...*cdoctest.Identity) []cdoc.Recipient {
	t.Helper()
	data, err := (&cdoctest.Container{
		Files:      []cdoctest.File{cdoctest.Lorem("lorem1.txt")},
		Recipients: ids,
	}).Build()
	require.NoError(t, err)
	recipients, err := cdoc.GetRecipients(bytes.NewReader(data))
	require.NoError(t, err)
	return recipients
}

func TestSelectFromPKCS12(t *testing.T) {
	ec, err := cdoctest.NewECIdentity("ec holder")
	require.NoError(t, err)
	rsa, err := cdoctest.NewRSAIdentity("rsa holder")
	require.NoError(t, err)
	recipients := recipientsOf(t, ec, rsa)

	p12, err := rsa.PKCS12("my card", []byte("1234"))
	require.NoError(t, err)

	matches, err := Select(recipients, &PKCS12Source{Data: p12, Password: []byte("1234")})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 1, matches[0].Index)
	assert.Equal(t, "rsa holder", matches[0].Recipient.CommonName)
	assert.Equal(t, "pkcs12", matches[0].Credential.Source)
	assert.Equal(t, "my card", matches[0].Credential.Label)
	assert.Equal(t, rsa.Certificate.Raw, matches[0].Credential.Certificate.Raw)
}

func TestSelectAcrossSources(t *testing.T) {
	a, err := cdoctest.NewECIdentity("a")
	require.NoError(t, err)
	b, err := cdoctest.NewECIdentity("b")
	require.NoError(t, err)
	recipients := recipientsOf(t, a, b)

	matches, err := Select(recipients,
		staticSource{{Certificate: b.Certificate, Source: "static"}},
		staticSource{{Certificate: a.Certificate, Source: "static"}},
	)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].Recipient.CommonName)
	assert.Equal(t, "b", matches[1].Recipient.CommonName)
}

func TestSelectNoMatch(t *testing.T) {
	owner, err := cdoctest.NewRSAIdentity("owner")
	require.NoError(t, err)
	stranger, err := cdoctest.NewRSAIdentity("stranger")
	require.NoError(t, err)

	_, err = Select(recipientsOf(t, owner), staticSource{{Certificate: stranger.Certificate}})
	assert.ErrorIs(t, err, ErrNoMatch)

	_, err = Select(recipientsOf(t, owner))
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestSelectSourceError(t *testing.T) {
	owner, err := cdoctest.NewRSAIdentity("owner")
	require.NoError(t, err)
	_, err = Select(recipientsOf(t, owner), failingSource{})
	assert.ErrorContains(t, err, "token removed")
}

func TestPKCS12WrongPassword(t *testing.T) {
	id, err := cdoctest.NewRSAIdentity("pw")
	require.NoError(t, err)
	p12, err := id.PKCS12("pw", []byte("right"))
	require.NoError(t, err)

	_, err = (&PKCS12Source{Data: p12, Password: []byte("wrong")}).Credentials()
	assert.Error(t, err)
}

func TestPKCS11RequiresConfig(t *testing.T) {
	_, err := (&PKCS11Source{}).Credentials()
	assert.Error(t, err)
}
