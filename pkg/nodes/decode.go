package nodes

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// decode maps a validated payload onto out. Weak typing lets "5" fill an int
// and "1s" fill a time.Duration.
func decode(in map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(in); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}
	return nil
}
