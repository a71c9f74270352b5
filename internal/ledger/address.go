package ledger

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	tronaddress "github.com/fbsobreira/gotron-sdk/pkg/address"

	"earnify-bot/internal/models"
)

const (
	tronAddressLength  = 34
	tronDecodedLength  = 21
	tronAddressVersion = 0x41
)

// ValidateAddress checks the address format for the given network.
// TRC20 addresses are base58check encoded with the 0x41 version byte; BEP20 addresses are 0x-prefixed hex.
func ValidateAddress(network models.Network, addr string) error {
	switch network {
	case models.NetworkTRC20:
		if len(addr) != tronAddressLength || !strings.HasPrefix(addr, "T") {
			return fmt.Errorf("%w: %s address must be %d characters starting with T", ErrInvalidAddress, network, tronAddressLength)
		}
		decoded, err := tronaddress.Base58ToAddress(addr)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
		}
		if len(decoded) != tronDecodedLength || decoded[0] != tronAddressVersion {
			return fmt.Errorf("%w: not a TRON account address", ErrInvalidAddress)
		}
		return nil
	case models.NetworkBEP20:
		if !strings.HasPrefix(addr, "0x") || !common.IsHexAddress(addr) {
			return fmt.Errorf("%w: %s address must be 0x followed by 40 hex characters", ErrInvalidAddress, network)
		}
		return nil
	}
	return fmt.Errorf("%w: unsupported network %q", ErrInvalidAddress, network)
}
