package registrations

import (
	"fmt"

	"github.com/speps/go-hashids/v2"
)

// ReferenceGenerator turns the registration sequence number into a short
// reference that can be read over the phone, e.g. "REG-4KX9QW".
type ReferenceGenerator struct {
	h *hashids.HashID
}

func NewReferenceGenerator(salt string) (*ReferenceGenerator, error) {
	hd := hashids.NewData()
	hd.Salt = salt
	hd.MinLength = 6
	hd.Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	h, err := hashids.NewWithData(hd)
	if err != nil {
		return nil, fmt.Errorf("reference generator: %w", err)
	}
	return &ReferenceGenerator{h: h}, nil
}

func (g *ReferenceGenerator) Generate(seq int64) (string, error) {
	code, err := g.h.EncodeInt64([]int64{seq})
	if err != nil {
		return "", err
	}
	return "REG-" + code, nil
}

// Decode returns the sequence number behind a reference.
func (g *ReferenceGenerator) Decode(ref string) (int64, error) {
	if len(ref) < 5 || ref[:4] != "REG-" {
		return 0, fmt.Errorf("malformed reference %q", ref)
	}
	nums, err := g.h.DecodeInt64WithError(ref[4:])
	if err != nil {
		return 0, err
	}
	if len(nums) != 1 {
		return 0, fmt.Errorf("malformed reference %q", ref)
	}
	return nums[0], nil
}
