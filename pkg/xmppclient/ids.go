package xmppclient

import (
	"math/big"

	"github.com/google/uuid"
	"github.com/itchyny/base58-go"
	"github.com/pkg/errors"
)

// generateID produces a fresh opaque identifier, used for connection
// IDs and for stamping outbound stanzas that carry no correlation id.
func generateID() (string, error) {
	idRaw, err := uuid.NewRandom()
	if err != nil {
		return "", errors.Wrap(err, "unable to generate random id")
	}
	i := new(big.Int).SetBytes(idRaw[:])
	idEncd, err := base58.BitcoinEncoding.Encode([]byte(i.String()))
	if err != nil {
		return "", errors.Wrap(err, "unable to encode id")
	}
	return string(idEncd), nil
}
