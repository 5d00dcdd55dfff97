package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/adapters/backend"
	redisadapter "github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/adapters/redis"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/adapters/sessioncodec"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/adapters/signing"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/bootstrap"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/correlation"
	domainauth "github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/domain/auth"
	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/ports"
)

var (
	errConfigIncomplete = errors.New("configuration incomplete")
	errActionRequired   = errors.New("-action is required")
	errSessionRequired  = errors.New("one of -id or -cookie is required")
	errBothSession      = errors.New("-id and -cookie are mutually exclusive")
)

func runCheckConfig(cc *commandContext, args []string) error {
	fs := newFlagSet(cc, "check-config")
	asJSON := fs.Bool("json", false, "print the report as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	report := bootstrap.ConfigReport(cc.Config)
	if *asJSON {
		if err := json.NewEncoder(cc.Out).Encode(report); err != nil {
			return err
		}
	} else {
		if report.Complete() {
			writeln(cc.Out, "configuration complete")
		}
		for _, name := range report.Missing {
			writef(cc.Out, "missing  %s\n", name)
		}
		for _, name := range report.Invalid {
			writef(cc.Out, "invalid  %s\n", name)
		}
	}
	if !report.Complete() {
		return errConfigIncomplete
	}
	return nil
}

func runPermissions(cc *commandContext, args []string) error {
	fs := newFlagSet(cc, "permissions")
	roleFilter := fs.String("role", "", "only print this role")
	if err := fs.Parse(args); err != nil {
		return err
	}

	policy, err := bootstrap.LoadPolicy(cc.Config.RBAC)
	if err != nil {
		return err
	}

	roles := policy.Roles()
	if *roleFilter != "" {
		role, ok := domainauth.ParseRole(*roleFilter)
		if !ok {
			return fmt.Errorf("unknown role %q", *roleFilter)
		}
		roles = []domainauth.Role{role}
	}

	tw := tabwriter.NewWriter(cc.Out, 0, 4, 2, ' ', 0)
	writef(tw, "ROLE\tACTIONS\n")
	for _, role := range roles {
		actions := policy.Permissions(role)
		names := make([]string, 0, len(actions))
		for _, a := range actions {
			names = append(names, string(a))
		}
		list := strings.Join(names, ",")
		if list == "" {
			list = "-"
		}
		writef(tw, "%s\t%s\n", role, list)
	}
	return tw.Flush()
}

func runSignRequest(cc *commandContext, args []string) error {
	fs := newFlagSet(cc, "sign-request")
	action := fs.String("action", "", "backend action name")
	payload := fs.String("payload", "{}", "JSON payload")
	token := fs.String("token", "", "backend auth token")
	send := fs.Bool("send", false, "POST the call to the configured backend and print the response")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*action) == "" {
		return errActionRequired
	}

	var body any
	if err := json.Unmarshal([]byte(*payload), &body); err != nil {
		return fmt.Errorf("parse -payload: %w", err)
	}

	if *send {
		return sendRequest(cc, ports.BackendCall{Action: *action, Payload: body, AuthToken: *token})
	}

	canonical, err := signing.CanonicalPayload(body)
	if err != nil {
		return err
	}
	env := backend.Envelope{
		Action:        *action,
		Payload:       canonical,
		Timestamp:     time.Now().UnixMilli(),
		Nonce:         uuid.NewString(),
		AuthToken:     *token,
		CorrelationID: correlation.NewID(),
	}
	signer := signing.NewSigner([]byte(cc.Config.Backend.SigningSecret))
	sig, err := signer.Sign(env.SignInput())
	if err != nil {
		return fmt.Errorf("sign: %w", err)
	}
	env.Signature = sig

	enc := json.NewEncoder(cc.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}

func sendRequest(cc *commandContext, call ports.BackendCall) error {
	client := bootstrap.BuildBackendClient(bootstrap.BackendConfig{
		Backend: cc.Config.Backend,
		Dev:     cc.Config.IsDev,
		Logger:  cc.Logger,
	})
	resp, callErr := client.Call(cc.Ctx, call)

	enc := json.NewEncoder(cc.Out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return err
	}
	return callErr
}

func runRevokeSession(cc *commandContext, args []string) error {
	fs := newFlagSet(cc, "revoke-session")
	id := fs.String("id", "", "session id")
	cookie := fs.String("cookie", "", "session cookie value")
	ttl := fs.Duration("ttl", 0, "deny-list lifetime (default: the absolute session timeout)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sessionID, until, err := revocationTarget(cc, *id, *cookie, *ttl)
	if err != nil {
		return err
	}

	client, err := bootstrap.ConnectRedis(bootstrap.RedisConnectConfig{
		Context: cc.Ctx,
		Redis:   cc.Config.Redis,
		Logger:  cc.Logger,
	})
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	store := redisadapter.NewRevocationStore(redisadapter.RevocationStoreOptions{
		Client: client,
		Prefix: cc.Config.Revocation.KeyPrefix,
	})
	if err := store.Revoke(cc.Ctx, sessionID, until); err != nil {
		return fmt.Errorf("revoke: %w", err)
	}
	writef(cc.Out, "revoked %s until %s\n", sessionID, until.UTC().Format(time.RFC3339))
	return nil
}

// revocationTarget resolves the session id and deny-list deadline from the flags.
func revocationTarget(cc *commandContext, id, cookie string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	windows := domainauth.Windows{
		Inactivity: cc.Config.Session.InactivityTimeout,
		Absolute:   cc.Config.Session.AbsoluteTimeout,
	}

	switch {
	case id != "" && cookie != "":
		return "", time.Time{}, errBothSession
	case id != "":
		if ttl <= 0 {
			ttl = windows.Absolute
		}
		return id, now.Add(ttl), nil
	case cookie != "":
		codec := sessioncodec.New(sessioncodec.Options{Secret: []byte(cc.Config.Session.Secret)})
		sess, err := codec.Decode(cookie)
		if err != nil {
			return "", time.Time{}, fmt.Errorf("decode cookie: %w", err)
		}
		if ttl > 0 {
			return sess.ID, now.Add(ttl), nil
		}
		return sess.ID, sess.AbsoluteDeadline(windows), nil
	default:
		return "", time.Time{}, errSessionRequired
	}
}
