package rules

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidCustomer is returned for names that cannot be used as a rule file.
var ErrInvalidCustomer = errors.New("invalid customer name")

// customerTag forbids path separators and characters reserved in file names
// on common platforms. 0x7C is the pipe character.
const customerTag = `required,max=128,excludesall=/\:*?"<>0x7C`

var validate = validator.New()

// NormalizeCustomer trims name and checks that it is usable as a customer id.
func NormalizeCustomer(name string) (string, error) {
	name = strings.TrimSpace(name)

	if err := validate.Var(name, customerTag); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return "", fmt.Errorf("%w: %q fails %s", ErrInvalidCustomer, name, verrs[0].Tag())
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidCustomer, err)
	}

	if name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidCustomer, name)
	}
	if strings.IndexFunc(name, unicode.IsControl) >= 0 {
		return "", fmt.Errorf("%w: %q contains control characters", ErrInvalidCustomer, name)
	}

	return name, nil
}
