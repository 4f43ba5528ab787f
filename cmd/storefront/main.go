// Command storefront is a terminal client for the FreshCart auth API. It
// keeps one signed-in principal per role in a local state file and walks the
// OTP and retailer registration flows against a running server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"

	"github.com/AnshRaj112/freshcart-backend/internal/appstate"
	"github.com/AnshRaj112/freshcart-backend/internal/guard"
	"github.com/AnshRaj112/freshcart-backend/internal/logger"
	"github.com/AnshRaj112/freshcart-backend/internal/models"
	"github.com/AnshRaj112/freshcart-backend/internal/otpflow"
	"github.com/AnshRaj112/freshcart-backend/internal/regstatus"
	"github.com/AnshRaj112/freshcart-backend/pkg/client"
	"github.com/AnshRaj112/freshcart-backend/pkg/utils"
)

type settings struct {
	APIURL    string `envconfig:"STOREFRONT_API_URL" default:"http://localhost:8080/api"`
	StateFile string `envconfig:"STOREFRONT_STATE_FILE"`
	LogLevel  string `envconfig:"STOREFRONT_LOG_LEVEL" default:"warn"`
}

const usage = `usage: storefront <command> [flags]

commands:
  signup     -role -email -name -password      create an account with an emailed code
  login      -role -email [-password]          sign in with a password or, without one, a code
  reset      -role -email -password            reset a password with an emailed code
  logout     -role                             end the role's session
  whoami                                       list signed-in principals
  status                                       retailer registration status
  register   -f key=value... [-doc field=path] submit the retailer registration
  dashboard                                    retailer dashboard
  watch                                        follow registration status live
  dismiss                                      hide the approved banner
`

type app struct {
	api     *client.Client
	state   *appstate.Store
	cookies *cookieFile
	in      <-chan string
	out     io.Writer
	log     zerolog.Logger
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	_ = godotenv.Load()
	var s settings
	if err := envconfig.Process("", &s); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if s.StateFile == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			dir = "."
		}
		s.StateFile = filepath.Join(dir, "freshcart", "storefront.json")
	}
	log := logger.New("development", s.LogLevel).With().Str(logger.Component, "storefront").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := open(s, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open storefront state")
	}

	runErr := a.run(ctx, os.Args[1], os.Args[2:])
	if err := a.close(s.StateFile); err != nil {
		log.Error().Err(err).Msg("save state")
	}
	if runErr != nil {
		if errors.Is(runErr, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, describe(runErr))
		os.Exit(1)
	}
}

func open(s settings, log zerolog.Logger) (*app, error) {
	st, err := appstate.Load(s.StateFile)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(s.StateFile), 0o700); err != nil {
		return nil, err
	}
	cookies, err := openCookies(s.StateFile+".cookies", s.APIURL)
	if err != nil {
		return nil, err
	}
	api, err := client.New(s.APIURL, client.WithHTTPClient(cookies.httpClient()))
	if err != nil {
		return nil, err
	}
	return &app{api: api, state: st, cookies: cookies, in: lines(os.Stdin), out: os.Stdout, log: log}, nil
}

func (a *app) close(stateFile string) error {
	if err := a.cookies.save(); err != nil {
		return err
	}
	return a.state.Save(stateFile)
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "signup":
		return a.signup(ctx, args)
	case "login":
		return a.login(ctx, args)
	case "reset":
		return a.reset(ctx, args)
	case "logout":
		return a.logout(ctx, args)
	case "whoami":
		return a.whoami()
	case "status":
		return a.status(ctx)
	case "register":
		return a.register(ctx, args)
	case "dashboard":
		return a.dashboard(ctx)
	case "watch":
		return a.watch(ctx)
	case "dismiss":
		regstatus.NewGate(a.api, a.state).Dismiss()
		fmt.Fprintln(a.out, "Banner dismissed.")
		return nil
	case "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
		return nil
	}
	fmt.Fprint(os.Stderr, usage)
	return fmt.Errorf("unknown command %q", cmd)
}

type authFlags struct {
	fs       *flag.FlagSet
	role     string
	email    string
	name     string
	password string
}

func parseAuth(name string, args []string) (*authFlags, models.Role, error) {
	f := &authFlags{fs: flag.NewFlagSet(name, flag.ContinueOnError)}
	f.fs.StringVar(&f.role, "role", string(models.RoleCustomer), "customer, retailer, deliveryBoy or admin")
	f.fs.StringVar(&f.email, "email", "", "account email")
	f.fs.StringVar(&f.name, "name", "", "display name (signup)")
	f.fs.StringVar(&f.password, "password", "", "password")
	if err := f.fs.Parse(args); err != nil {
		return nil, "", err
	}
	role, ok := models.ParseRole(f.role)
	if !ok {
		return nil, "", &utils.ValidationError{Field: "role", Message: fmt.Sprintf("Unknown role %q", f.role)}
	}
	return f, role, nil
}

// publicOnly refuses auth forms for a role that is already signed in.
func (a *app) publicOnly(role models.Role) error {
	if d := guard.PublicOnly(role, a.state.Principal(role)); !d.Render {
		return fmt.Errorf("already signed in as %s; open %s", role, d.Redirect)
	}
	return nil
}

func (a *app) flow() *otpflow.Flow {
	return otpflow.New(a.api, a.state, otpflow.Options{})
}

func (a *app) verify(ctx context.Context, pending client.PendingAuth) (otpflow.Outcome, error) {
	flow := a.flow()
	if err := flow.Submit(ctx, pending); err != nil {
		return otpflow.Outcome{}, err
	}
	if msg := flow.Message(); msg != "" {
		fmt.Fprintln(a.out, msg)
	}
	return enterCode(ctx, flow, a.in, a.out)
}

func (a *app) signup(ctx context.Context, args []string) error {
	f, role, err := parseAuth("signup", args)
	if err != nil {
		return err
	}
	if err := a.publicOnly(role); err != nil {
		return err
	}
	_, err = a.verify(ctx, client.PendingAuth{
		Action: models.OTPActionSignup,
		Role:   role,
		Email:  f.email,
		Data:   map[string]string{"name": f.name, "password": f.password, "confirmPassword": f.password},
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Account created. Sign in with: storefront login -role %s -email %s\n", role, f.email)
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	f, role, err := parseAuth("login", args)
	if err != nil {
		return err
	}
	if err := a.publicOnly(role); err != nil {
		return err
	}

	var p *models.Principal
	if f.password != "" {
		got, err := a.api.Login(ctx, role, client.Credentials{Email: f.email, Password: f.password})
		if err != nil {
			return err
		}
		p = &got
	} else {
		out, err := a.verify(ctx, client.PendingAuth{Action: models.OTPActionLogin, Role: role, Email: f.email})
		if err != nil {
			return err
		}
		p = out.Principal
	}
	if p == nil {
		return errors.New(client.GenericMessage)
	}

	a.state.Slot(role).Set(*p)
	a.log.Debug().Str(logger.Role, string(role)).Str(logger.Email, p.Email).Msg("signed in")
	fmt.Fprintf(a.out, "Signed in as %s (%s). Home: %s\n", p.Name, p.Email, guard.PathsFor(role).Home)
	return nil
}

func (a *app) reset(ctx context.Context, args []string) error {
	f, role, err := parseAuth("reset", args)
	if err != nil {
		return err
	}
	out, err := a.verify(ctx, client.PendingAuth{
		Action: models.OTPActionResetPassword,
		Role:   role,
		Email:  f.email,
		Data:   map[string]string{"password": f.password, "confirmPassword": f.password},
	})
	if err != nil {
		return err
	}
	if err := a.api.ResetPassword(ctx, out.ResetToken, f.password); err != nil {
		return err
	}
	a.state.Slot(role).Logout()
	fmt.Fprintln(a.out, "Password updated. Please sign in again.")
	return nil
}

func (a *app) logout(ctx context.Context, args []string) error {
	_, role, err := parseAuth("logout", args)
	if err != nil {
		return err
	}
	if err := a.api.Logout(ctx, role); err != nil {
		a.log.Warn().Err(err).Str(logger.Role, string(role)).Msg("server logout failed; clearing local session")
	}
	a.state.Slot(role).Logout()
	fmt.Fprintf(a.out, "Signed out of %s.\n", role)
	return nil
}

func (a *app) whoami() error {
	for _, role := range models.AllRoles {
		p := a.state.Principal(role)
		if !guard.Present(role, p) {
			fmt.Fprintf(a.out, "%-12s -\n", role)
			continue
		}
		fmt.Fprintf(a.out, "%-12s %s <%s>\n", role, p.Name, p.Email)
	}
	return nil
}

// retailer returns the signed-in retailer or the login redirect.
func (a *app) retailer() (*models.Principal, error) {
	p := a.state.Retailer().Get()
	if d := guard.Protected(models.RoleRetailer, p); !d.Render {
		return nil, fmt.Errorf("not signed in as a retailer; open %s", d.Redirect)
	}
	return p, nil
}

func (a *app) status(ctx context.Context) error {
	p, err := a.retailer()
	if err != nil {
		return err
	}
	gate := regstatus.NewGate(a.api, a.state)
	if err := gate.Sync(ctx, p.Email); err != nil {
		return err
	}
	v, _ := gate.View()
	a.printBanner(gate, v)
	if v.Restricted {
		fmt.Fprintln(a.out, "Dashboard access is restricted.")
	} else {
		fmt.Fprintln(a.out, "Dashboard access is open.")
	}
	return nil
}

// watch prints the gate's view for every status the server pushes. When the
// feed drops the status is fetched once more so the last line is current.
func (a *app) watch(ctx context.Context) error {
	p, err := a.retailer()
	if err != nil {
		return err
	}
	gate := regstatus.NewGate(a.api, a.state)
	if err := gate.Sync(ctx, p.Email); err != nil {
		return err
	}
	v, _ := gate.View()
	a.printBanner(gate, v)
	fmt.Fprintln(a.out, "Watching for review updates (Ctrl-C to stop)...")

	err = a.api.WatchRegistration(ctx, func(u client.StatusUpdate) {
		if u.Type != models.RegistrationEventChanged {
			return
		}
		gate.Apply(p.Email, u.Status)
		if v, ok := gate.View(); ok {
			a.printBanner(gate, v)
		}
	})
	if err == nil || ctx.Err() != nil {
		return nil
	}
	a.log.Warn().Err(err).Msg("registration feed dropped")
	if rerr := gate.Refresh(context.WithoutCancel(ctx)); rerr != nil {
		return err
	}
	v, _ = gate.View()
	a.printBanner(gate, v)
	return err
}

func (a *app) dashboard(ctx context.Context) error {
	if _, err := a.retailer(); err != nil {
		return err
	}
	dv, err := a.api.Dashboard(ctx)
	if err != nil {
		return err
	}
	gate := regstatus.NewGate(a.api, a.state)
	a.printBanner(gate, regstatus.View{Restricted: dv.Restricted, Banner: dv.Banner, Status: dv.Status})
	if dv.Restricted || dv.Dashboard == nil {
		return nil
	}
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(dv.Dashboard)
}

func (a *app) printBanner(gate *regstatus.Gate, v regstatus.View) {
	if !gate.ShowBanner(v) {
		return
	}
	b := v.Banner
	fmt.Fprintf(a.out, "[%s] %s\n  %s\n", b.Kind, b.Title, b.Message)
	if b.Reason != "" {
		fmt.Fprintf(a.out, "  Reason: %s\n", b.Reason)
	}
	if b.Action != nil {
		fmt.Fprintf(a.out, "  %s: %s\n", b.Action.Label, b.Action.Href)
	}
}

// pairs collects repeated key=value flags.
type pairs map[string]string

func (p pairs) String() string { return fmt.Sprint(map[string]string(p)) }

func (p pairs) Set(v string) error {
	k, val, ok := strings.Cut(v, "=")
	if !ok || k == "" {
		return fmt.Errorf("expected key=value, got %q", v)
	}
	p[k] = val
	return nil
}

func (a *app) register(ctx context.Context, args []string) error {
	if _, err := a.retailer(); err != nil {
		return err
	}
	fields, docs := pairs{}, pairs{}
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.Var(fields, "f", "registration field as key=value (repeatable)")
	fs.Var(docs, "doc", "document as field=path (license_document, id_document)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var uploads []client.Document
	for field, path := range docs {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		uploads = append(uploads, client.Document{Field: field, Filename: filepath.Base(path), Content: f})
	}

	status, err := a.api.SubmitRegistration(ctx, fields, uploads...)
	if err != nil {
		return err
	}
	gate := regstatus.NewGate(a.api, a.state)
	a.printBanner(gate, regstatus.Evaluate(status))
	return nil
}

func describe(err error) string {
	var (
		v  *utils.ValidationError
		r  *client.RejectionError
		ne *client.NetworkError
	)
	switch {
	case errors.Is(err, otpflow.ErrCanceled):
		return "Canceled."
	case errors.As(err, &v):
		return v.Message
	case errors.As(err, &r), errors.As(err, &ne):
		return client.UserMessage(err)
	}
	return err.Error()
}
