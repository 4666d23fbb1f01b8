package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ParseAddress converts a hex string into common.Address.
func ParseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address: %s", input)
	}
	return common.HexToAddress(input), nil
}

// ParseAddresses converts string addresses into common.Address, skipping blanks.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		if strings.TrimSpace(input) == "" {
			continue
		}
		addr, err := ParseAddress(input)
		if err != nil {
			return nil, err
		}
		addresses = append(addresses, addr)
	}
	return addresses, nil
}

// ParseRoute parses a price path written as "0xA>0xB>0xStable".
func ParseRoute(input string) ([]common.Address, error) {
	if strings.TrimSpace(input) == "" {
		return nil, fmt.Errorf("empty route")
	}
	path, err := ParseAddresses(strings.Split(input, ">"))
	if err != nil {
		return nil, fmt.Errorf("route %q: %w", input, err)
	}
	if len(path) == 0 {
		return nil, fmt.Errorf("empty route")
	}
	return path, nil
}

// ParseSeconds parses a duration given as whole seconds or a Go duration ("168h").
func ParseSeconds(input string) (uint64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, nil
	}

	if isNumeric(input) {
		return strconv.ParseUint(input, 10, 64)
	}

	d, err := time.ParseDuration(input)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", input)
	}
	return uint64(d / time.Second), nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}
