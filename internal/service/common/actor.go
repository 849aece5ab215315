//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"fmt"
	"os"
	"os/user"
	"strings"

	domain "github.com/oshokin/smart-alarm/internal/domain/alarm"
)

// ActorEnv overrides the detected operator identity, in username@hostname form.
// Containers without a passwd entry for the current uid need it.
const ActorEnv = "SMART_ALARM_ACTOR"

// DetectActor returns the identity sent with every remote command.
func DetectActor() (*domain.Actor, error) {
	if s := os.Getenv(ActorEnv); s != "" {
		actor, err := domain.ParseActor(s)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ActorEnv, err)
		}

		return actor, nil
	}

	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("hostname: %w", err)
	}

	currentUser, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("current user (set %s to override): %w", ActorEnv, err)
	}

	return &domain.Actor{
		Hostname: hostname,
		Username: bareUsername(currentUser.Username),
	}, nil
}

// bareUsername drops the DOMAIN\ prefix Windows puts in front of account names.
func bareUsername(name string) string {
	if i := strings.LastIndexByte(name, '\\'); i >= 0 && i < len(name)-1 {
		return name[i+1:]
	}

	return name
}
