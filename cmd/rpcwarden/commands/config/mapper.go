package config

import (
	"reflect"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/marmos91/rpcwarden/internal/bytesize"
)

var (
	durationType = reflect.TypeOf(time.Duration(0))
	byteSizeType = reflect.TypeOf(bytesize.ByteSize(0))
)

func mapType(t reflect.Type) *jsonschema.Schema {
	switch t {
	case durationType:
		return &jsonschema.Schema{
			Type:        "string",
			Pattern:     `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`,
			Description: `Duration such as "250ms", "30s" or "1m30s"`,
		}
	case byteSizeType:
		return &jsonschema.Schema{
			Type:        "string",
			Description: `Size such as "512KiB", "1MiB" or "4MB"`,
		}
	}
	return nil
}
