package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"maps"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/helenaexplora/explora-platform/internal/captcha"
	"github.com/helenaexplora/explora-platform/internal/i18n"
	"github.com/helenaexplora/explora-platform/internal/leads"
	"github.com/helenaexplora/explora-platform/internal/wizard"
	"github.com/helenaexplora/explora-platform/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	baseURL := flag.String("url", envOr("PUBLIC_BASE_URL", "http://localhost:8080"), "relay base URL")
	anonKey := flag.String("key", os.Getenv("RELAY_ANON_KEY"), "relay anon key")
	variant := flag.String("variant", envOr("FORM_VARIANT", leads.DefaultVariant), "form variant")
	token := flag.String("token", captcha.BypassToken, "verification token sent with the lead")
	lang := flag.String("lang", envOr("DEFAULT_LOCALE", "pt-BR"), "message language")
	flag.Parse()

	schema, err := leads.Variant(*variant)
	if err != nil {
		log.Fatalf("form variant: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	loc := i18n.NewLocalizer(*lang)
	relay := wizard.NewRelayClient(*baseURL, *anonKey, logging.NewWithWriter("error", os.Stderr))
	if err := run(ctx, schema, relay, *token, loc, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// staticToken hands the same verification token to every submission.
type staticToken string

func (t staticToken) SubmissionToken() string { return string(t) }

func (staticToken) Reset() {}

// run walks the wizard step by step, re-asking a step until it validates,
// then submits once.
func run(ctx context.Context, schema *leads.Schema, submitter wizard.Submitter, token string, loc *i18n.Localizer, in io.Reader, out io.Writer) error {
	ctl := wizard.New(schema, submitter,
		wizard.WithCaptcha(staticToken(token)),
		wizard.WithLocale(loc, loc.Fallback()),
		wizard.WithNotifier(wizard.NotifierFunc(func(n wizard.Notification) {
			fmt.Fprintf(out, "\n[%s] %s\n", n.Severity, n.Message)
		})),
	)
	p := &prompter{scanner: bufio.NewScanner(in), out: out}

	fmt.Fprintln(out, schema.Title())
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := ctl.Current()
		st, _ := schema.Step(n)
		fmt.Fprintf(out, "\n[%d/%d] %s\n", n, ctl.StepCount(), st.Title)
		if err := fillStep(ctl, schema, st, p); err != nil {
			return err
		}

		if n < ctl.StepCount() {
			if !ctl.Advance() {
				printErrors(out, ctl.FieldErrors())
			}
			continue
		}

		err := ctl.Submit(ctx)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, wizard.ErrStepInvalid):
			printErrors(out, ctl.FieldErrors())
			ctl.JumpTo(firstInvalidStep(ctl))
		default:
			return err
		}
	}
}

func fillStep(ctl *wizard.Controller, schema *leads.Schema, st leads.Step, p *prompter) error {
	for _, f := range st.Fields {
		if !schema.Applies(f, ctl.Record()) {
			continue
		}
		answer, err := p.ask(f)
		if err != nil {
			return err
		}
		if answer == "" {
			continue
		}
		if leads.IsList(f.Name) {
			if err := replaceTags(ctl, f, answer); err != nil {
				return err
			}
			continue
		}
		if err := ctl.Set(f.Name, pickOption(f, answer)); err != nil {
			return err
		}
	}
	return nil
}

// replaceTags swaps the current selection of a list field for the options
// named by a comma separated answer.
func replaceTags(ctl *wizard.Controller, f leads.FieldSpec, answer string) error {
	for _, old := range ctl.Record().Values(f.Name) {
		if err := ctl.Toggle(f.Name, old); err != nil {
			return err
		}
	}
	for _, part := range strings.Split(answer, ",") {
		if part = strings.TrimSpace(part); part == "" {
			continue
		}
		if err := ctl.Toggle(f.Name, pickOption(f, part)); err != nil {
			return err
		}
	}
	return nil
}

// pickOption maps a 1-based option number to its label. Anything else is
// taken verbatim.
func pickOption(f leads.FieldSpec, answer string) string {
	if i, err := strconv.Atoi(answer); err == nil && i >= 1 && i <= len(f.Options) {
		return f.Options[i-1]
	}
	return answer
}

func firstInvalidStep(ctl *wizard.Controller) int {
	for n := 1; n <= ctl.StepCount(); n++ {
		if valid, known := ctl.StepValid(n); known && !valid {
			return n
		}
	}
	return ctl.Current()
}

func printErrors(out io.Writer, errs map[string]string) {
	for _, name := range slices.Sorted(maps.Keys(errs)) {
		fmt.Fprintf(out, "  ! %s: %s\n", name, errs[name])
	}
}

type prompter struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func (p *prompter) ask(f leads.FieldSpec) (string, error) {
	fmt.Fprintf(p.out, "%s", f.Label)
	if leads.IsList(f.Name) {
		fmt.Fprint(p.out, " (separe com vírgulas)")
	}
	fmt.Fprintln(p.out)
	for i, opt := range f.Options {
		fmt.Fprintf(p.out, "  %d) %s\n", i+1, opt)
	}
	fmt.Fprint(p.out, "> ")
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.ErrUnexpectedEOF
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
