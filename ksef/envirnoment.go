package ksef

type Environment int

const (
	Test Environment = iota
	Demo
	Prod
)

func (e Environment) BaseURL() string {
	switch e {
	case Prod:
		return "https://ksef.mf.gov.pl/api/v2"
	case Test:
		return "https://ksef-test.mf.gov.pl/api/v2"
	case Demo:
		return "https://ksef-demo.mf.gov.pl/api/v2"
	}
	panic("Invalid environment")
}

func ParseEnvironment(s string) (Environment, error) {
	switch s {
	case "test":
		return Test, nil
	case "demo":
		return Demo, nil
	case "prod":
		return Prod, nil
	}
	return Test, &InvalidInputError{Field: "environment", Reason: "expected test, demo or prod, got: " + s}
}
