package schema

import (
	"strconv"

	"github.com/cockroachdb/errors"
)

// Uint64 is a 64-bit node id that decodes from either a JSON number or a
// string. capnp convert quotes ids above 2^53 to keep them JavaScript-safe;
// hand-written dumps tend to use "0x..." strings.
type Uint64 uint64

// UnmarshalJSON accepts 123, "123" and "0x7b".
func (u *Uint64) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "null" || s == "" {
		*u = 0
		return nil
	}
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return errors.Wrapf(err, "schema: parsing node id %q", s)
	}
	*u = Uint64(v)
	return nil
}

// MarshalJSON always emits the quoted decimal form so ids survive any JSON
// tooling in between.
func (u Uint64) MarshalJSON() ([]byte, error) {
	return []byte(`"` + strconv.FormatUint(uint64(u), 10) + `"`), nil
}

func (u Uint64) String() string {
	return strconv.FormatUint(uint64(u), 10)
}
