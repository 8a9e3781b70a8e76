package escrow

import (
	"fmt"

	"swapescrow/crypto"
	"swapescrow/native/token"
)

// vaultAuthority replays the record's derivation with the bump cached at
// creation and, on success, returns the proof the token ledger accepts as
// owner of the vault. Only a caller holding the matching record can produce
// it; a forged record or tampered bump fails here before any transfer.
func vaultAuthority(rec *Record, recordAddr crypto.Address) (token.Authority, error) {
	auth, err := token.DerivedAuthority(ProgramID, recordAddr, rec.Bump, recordSeeds(rec.Maker, rec.Seed)...)
	if err != nil {
		return token.Authority{}, fmt.Errorf("%w: %v", ErrUnauthorizedVault, err)
	}
	return auth, nil
}
