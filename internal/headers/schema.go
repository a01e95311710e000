package headers

import "github.com/utafrali/EcommerceGo/authgateway/internal/guard"

// Schema names one of the header structs below. The zero value means the
// route did not bind one explicitly and the schema is derived from its
// guard strategy.
type Schema int

const (
	SchemaDefault Schema = iota
	SchemaPublic
	SchemaGuest
	SchemaAuthenticated
	SchemaLogin
)

func (s Schema) String() string {
	switch s {
	case SchemaPublic:
		return "public"
	case SchemaGuest:
		return "guest"
	case SchemaAuthenticated:
		return "authenticated"
	case SchemaLogin:
		return "login"
	default:
		return "default"
	}
}

// Select picks the schema for a route: an explicit binding wins, otherwise
// signed-payload routes use Public, guest-either routes use Guest and
// everything else uses Authenticated.
func Select(explicit Schema, strategy guard.Strategy) Schema {
	if explicit != SchemaDefault {
		return explicit
	}
	switch strategy {
	case guard.StrategySignedPayload:
		return SchemaPublic
	case guard.StrategyGuestEither:
		return SchemaGuest
	default:
		return SchemaAuthenticated
	}
}

// Common holds the optional headers every schema accepts.
type Common struct {
	Host           string `header:"host" validate:"omitempty,http_host"`
	ContentType    string `header:"content-type" validate:"omitempty,mimetype"`
	AcceptLanguage string `header:"accept-language" validate:"omitempty,max=256"`
	AppVersion     string `header:"x-app-version" validate:"omitempty,semver"`
	DeviceID       string `header:"x-device-id" validate:"omitempty,uuid"`
	Platform       string `header:"x-platform" validate:"omitempty,oneof=ios android web"`
}

// Public is bound to signed-payload routes.
type Public struct {
	Common
	Payload string `header:"payload" validate:"required,base64"`
}

// Guest is bound to guest-either routes. The guard enforces that exactly one
// of the two credentials is present.
type Guest struct {
	Common
	Payload       string `header:"payload" validate:"omitempty,base64"`
	Authorization string `header:"authorization" validate:"omitempty,bearer"`
}

// Authenticated is bound to bearer routes.
type Authenticated struct {
	Common
	Authorization string `header:"authorization" validate:"required,bearer"`
}

// Login is bound explicitly on the login route. Device and platform are
// recorded on the session.
type Login struct {
	Host           string `header:"host" validate:"omitempty,http_host"`
	ContentType    string `header:"content-type" validate:"omitempty,mimetype"`
	AcceptLanguage string `header:"accept-language" validate:"omitempty,max=256"`
	AppVersion     string `header:"x-app-version" validate:"omitempty,semver"`
	DeviceID       string `header:"x-device-id" validate:"required,uuid"`
	Platform       string `header:"x-platform" validate:"required,oneof=ios android web"`
	Payload        string `header:"payload" validate:"required,base64"`
}

func (s Schema) newValue() any {
	switch s {
	case SchemaPublic:
		return &Public{}
	case SchemaGuest:
		return &Guest{}
	case SchemaLogin:
		return &Login{}
	default:
		return &Authenticated{}
	}
}
