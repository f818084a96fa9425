// Package shell is the line-oriented front end of the dashboard. Each
// command maps onto one page action and prints the result.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/rayaadinda/kp-inventory/internal/cart"
	"github.com/rayaadinda/kp-inventory/internal/classify"
	"github.com/rayaadinda/kp-inventory/internal/dashboard"
	"github.com/rayaadinda/kp-inventory/internal/gateway"
	"github.com/rayaadinda/kp-inventory/internal/session"
	"github.com/rayaadinda/kp-inventory/internal/websocket"
)

// ErrQuit is returned by Exec for quit and exit.
var ErrQuit = errors.New("quit")

const helpText = `commands:
  login <email> <password>      sign in
  logout                        sign out
  list                          reload and show inventory with stock status
  search [text]                 filter by product code or name
  category [name]               filter by category (All clears)
  qty <item> <n>                set the quantity to add for an item
  add <item> [n]                add an item to the cart
  remove <item>                 remove an item from the cart
  clear                         empty the cart
  cart                          show the cart
  wo <number>                   set the work order number
  checkout                      submit the cart
  report [period|YYYY-MM-DD]    checkout history (all, week, month, quarter)
  report export <csv|xlsx> <file>
  create <code> <qty> <name...> [supplier=..] [location=..]
  update <item> <qty>           set an item's stock level
  delete <item>                 delete an item (admin)
  quit
items may be given by id or product code`

// Shell runs commands against the dashboard pages.
type Shell struct {
	outMu     sync.Mutex
	out       io.Writer
	auth      *session.AuthContext
	login     *dashboard.LoginPage
	inventory *dashboard.InventoryPage
	checkout  *dashboard.CheckoutPage
	reports   *dashboard.ReportPage
	log       *zap.Logger
	cartOpts  []cart.Option
	writeFile func(name string, data []byte) error
}

type Option func(*Shell)

func WithLogger(l *zap.Logger) Option {
	return func(s *Shell) { s.log = l }
}

// WithCartOptions passes options through to the checkout page's cart.
func WithCartOptions(opts ...cart.Option) Option {
	return func(s *Shell) { s.cartOpts = append(s.cartOpts, opts...) }
}

// WithFileWriter replaces os.WriteFile for report exports.
func WithFileWriter(fn func(name string, data []byte) error) Option {
	return func(s *Shell) { s.writeFile = fn }
}

func New(gw gateway.Gateway, auth *session.AuthContext, policy classify.StockPolicy, out io.Writer, opts ...Option) *Shell {
	s := &Shell{
		out:       out,
		auth:      auth,
		log:       zap.NewNop(),
		writeFile: func(name string, data []byte) error { return os.WriteFile(name, data, 0o644) },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.login = dashboard.NewLoginPage(gw, auth, s.log)
	s.inventory = dashboard.NewInventoryPage(gw, policy, s.log)
	s.checkout = dashboard.NewCheckoutPage(gw, s.log, s.cartOpts...)
	s.reports = dashboard.NewReportPage(gw, s.log)
	return s
}

func (s *Shell) printf(format string, args ...interface{}) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

// Run reads commands from in until EOF, quit, or ctx ends. Command errors
// are printed, not returned.
func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	if s.auth.IsAuthenticated() {
		s.Refresh(ctx)
	} else {
		s.printf("not signed in, use: login <email> <password>\n")
	}

	sc := bufio.NewScanner(in)
	for {
		s.printf("> ")
		if !sc.Scan() {
			s.printf("\n")
			return sc.Err()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := s.Exec(ctx, sc.Text())
		if errors.Is(err, ErrQuit) {
			return nil
		}
		if err != nil {
			s.report(err)
		}
	}
}

func (s *Shell) report(err error) {
	s.printf("error: %s\n", dashboard.Message(err))
	if dashboard.NeedsLogin(err) {
		s.printf("sign in again with: login <email> <password>\n")
	}
}

// Refresh reloads the inventory on both pages.
func (s *Shell) Refresh(ctx context.Context) {
	for _, load := range []func(context.Context) error{s.inventory.Load, s.checkout.Load} {
		if err := load(ctx); err != nil {
			s.log.Warn("inventory reload failed", zap.Error(err))
		}
	}
}

// Watcher streams change notifications from the backend.
type Watcher interface {
	Watch(ctx context.Context, fn func(websocket.Event)) error
}

// Watch reloads the inventory whenever the backend announces a change and
// reconnects after retry when the stream drops. It returns when ctx ends.
func (s *Shell) Watch(ctx context.Context, w Watcher, retry time.Duration) {
	for {
		err := w.Watch(ctx, func(e websocket.Event) {
			s.log.Debug("change notification", zap.String("type", e.Type), zap.String("id", e.ID))
			s.Refresh(ctx)
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil && !dashboard.NeedsLogin(err) {
			s.log.Info("change stream dropped", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(retry):
		}
	}
}

// Exec runs a single command line.
func (s *Shell) Exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	switch cmd {
	case "help", "?":
		s.printf("%s\n", helpText)
		return nil
	case "quit", "exit":
		return ErrQuit
	case "login":
		return s.cmdLogin(ctx, args)
	case "logout":
		if err := s.login.Logout(); err != nil {
			return err
		}
		s.checkout.ClearCart()
		s.printf("signed out\n")
		return nil
	case "list":
		if err := s.inventory.Load(ctx); err != nil {
			return err
		}
		if err := s.checkout.Load(ctx); err != nil {
			s.log.Warn("checkout reload failed", zap.Error(err))
		}
		return s.cmdList()
	case "search":
		q := strings.Join(args, " ")
		s.inventory.SetQuery(q)
		s.checkout.SetQuery(q)
		return s.cmdList()
	case "category":
		c := classify.Category(strings.Join(args, " "))
		s.inventory.SetCategory(c)
		s.checkout.SetCategory(c)
		return s.cmdList()
	case "qty":
		return s.cmdQty(args)
	case "add":
		return s.cmdAdd(args)
	case "remove":
		return s.cmdRemove(args)
	case "clear":
		s.checkout.ClearCart()
		s.printf("cart cleared\n")
		return nil
	case "cart":
		s.printCart()
		return nil
	case "wo":
		s.checkout.SetWorkOrder(strings.Join(args, " "))
		s.printf("work order: %s\n", s.checkout.WorkOrder())
		return nil
	case "checkout":
		return s.cmdCheckout(ctx)
	case "report":
		return s.cmdReport(ctx, args)
	case "create":
		return s.cmdCreate(ctx, args)
	case "update":
		return s.cmdUpdate(ctx, args)
	case "delete":
		return s.cmdDelete(ctx, args)
	}
	return fmt.Errorf("unknown command %q, try help", cmd)
}

func (s *Shell) cmdLogin(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: login <email> <password>")
	}
	if err := s.login.Submit(ctx, args[0], args[1]); err != nil {
		return err
	}
	u, _ := s.auth.User()
	s.printf("signed in as %s (%s)\n", u.Email, u.Role)
	s.Refresh(ctx)
	return nil
}

func (s *Shell) cmdList() error {
	if msg := s.inventory.LoadError(); msg != "" {
		return errors.New(msg)
	}
	rows := s.inventory.Rows()
	s.outMu.Lock()
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tNAME\tQTY\tUNIT\tCATEGORY\tMIN\tSTATUS\tLOCATION")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%d\t%s\t%s\n",
			r.ProductCode, r.ProductName, r.Quantity, r.DisplayUnit, r.DisplayCategory, r.MinLevel, r.Status, r.Location)
	}
	tw.Flush()
	s.outMu.Unlock()

	sum := s.inventory.Summary()
	q, c := s.inventory.Query()
	s.printf("%d shown of %d (in stock %d, low %d, out %d)", len(rows), sum.Total, sum.InStock, sum.LowStock, sum.OutOfStock)
	if q != "" || (c != "" && c != classify.All) {
		s.printf(" filter: %q in %s", q, c)
	}
	s.printf("\ncategories: %s\n", joinCategories(s.inventory.Categories()))
	return nil
}

func joinCategories(cs []classify.Category) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}

func (s *Shell) itemID(ref string) (string, error) {
	it, ok := s.checkout.Item(ref)
	if !ok {
		return "", gateway.NewLocalValidation(fmt.Sprintf("no loaded item matches %q", ref))
	}
	return it.ID, nil
}

func parseQuantity(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, gateway.NewLocalValidation(fmt.Sprintf("%q is not a whole number", v))
	}
	return n, nil
}

func (s *Shell) cmdQty(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: qty <item> <n>")
	}
	id, err := s.itemID(args[0])
	if err != nil {
		return err
	}
	n, err := parseQuantity(args[1])
	if err != nil {
		return err
	}
	s.checkout.SetPendingQuantity(id, n)
	if !s.checkout.CanAdd(id) {
		s.printf("quantity %d cannot be added for %s\n", n, args[0])
	}
	return nil
}

func (s *Shell) cmdAdd(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errors.New("usage: add <item> [n]")
	}
	id, err := s.itemID(args[0])
	if err != nil {
		return err
	}
	if len(args) == 2 {
		n, err := parseQuantity(args[1])
		if err != nil {
			return err
		}
		s.checkout.SetPendingQuantity(id, n)
	}
	if err := s.checkout.AddToCart(id); err != nil {
		return err
	}
	s.printCart()
	return nil
}

func (s *Shell) cmdRemove(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: remove <item>")
	}
	for _, l := range s.checkout.CartLines() {
		if l.ItemID == args[0] || strings.EqualFold(l.ProductCode, args[0]) {
			s.checkout.RemoveFromCart(l.ItemID)
			s.printCart()
			return nil
		}
	}
	return gateway.NewLocalValidation(fmt.Sprintf("%q is not in the cart", args[0]))
}

func (s *Shell) printCart() {
	lines := s.checkout.CartLines()
	if len(lines) == 0 {
		s.printf("cart is empty\n")
		return
	}
	s.outMu.Lock()
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tNAME\tQTY\tUNIT\tAVAILABLE")
	for _, l := range lines {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\n", l.ProductCode, l.ProductName, l.QuantityRequested, l.Unit, l.QuantityAvailable)
	}
	tw.Flush()
	s.outMu.Unlock()
	s.printf("%d lines, %d items", len(lines), s.checkout.TotalItemCount())
	if wo := s.checkout.WorkOrder(); wo != "" {
		s.printf(", work order %s", wo)
	}
	s.printf("\n")
}

func (s *Shell) cmdCheckout(ctx context.Context) error {
	if !s.checkout.CanSubmit() {
		return errors.New("a checkout is already being submitted")
	}
	out, err := s.checkout.Submit(ctx)
	if err != nil {
		return err
	}
	s.printf("%s (%s)\n", out.Message, out.State)
	s.checkout.Acknowledge()
	if err := s.inventory.Load(ctx); err != nil {
		s.log.Warn("inventory reload failed", zap.Error(err))
	}
	return nil
}

func (s *Shell) cmdReport(ctx context.Context, args []string) error {
	if len(args) > 0 && args[0] == "export" {
		return s.cmdExport(ctx, args[1:])
	}
	if len(args) > 1 {
		return errors.New("usage: report [period|YYYY-MM-DD]")
	}
	if len(args) == 1 {
		if day, err := time.Parse("2006-01-02", args[0]); err == nil {
			s.reports.SetDay(day)
		} else {
			p, err := dashboard.ParsePeriod(args[0])
			if err != nil {
				return gateway.NewLocalValidation(err.Error())
			}
			s.reports.SetPeriod(p)
		}
	}
	if err := s.reports.Load(ctx); err != nil {
		return err
	}

	reports := s.reports.Reports()
	s.outMu.Lock()
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tWORK ORDER\tITEMS\tTOTAL\tOPERATOR\tSTATUS")
	for _, r := range reports {
		names := make([]string, len(r.Items))
		for i, l := range r.Items {
			names[i] = fmt.Sprintf("%s x%d %s", l.Name, l.Quantity, l.Unit)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", r.Date, r.WorkOrder, strings.Join(names, "; "), r.TotalItems, r.Operator, r.Status)
	}
	tw.Flush()
	s.outMu.Unlock()
	checkouts, units := s.reports.Totals()
	s.printf("%d checkouts, %d units\n", checkouts, units)
	return nil
}

func (s *Shell) cmdExport(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: report export <csv|xlsx> <file>")
	}
	data, err := s.reports.Export(ctx, strings.ToLower(args[0]))
	if err != nil {
		return err
	}
	if err := s.writeFile(args[1], data); err != nil {
		return fmt.Errorf("write %s: %w", args[1], err)
	}
	s.printf("wrote %d bytes to %s\n", len(data), args[1])
	return nil
}

func (s *Shell) cmdCreate(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return errors.New("usage: create <code> <qty> <name...> [supplier=..] [location=..]")
	}
	form := dashboard.ItemForm{ProductCode: args[0], Quantity: args[1]}
	var name []string
	for _, a := range args[2:] {
		switch {
		case strings.HasPrefix(a, "supplier="):
			form.Supplier = strings.TrimPrefix(a, "supplier=")
		case strings.HasPrefix(a, "location="):
			form.Location = strings.TrimPrefix(a, "location=")
		default:
			name = append(name, a)
		}
	}
	form.ProductName = strings.Join(name, " ")
	item, err := s.inventory.Create(ctx, form)
	if err != nil {
		return err
	}
	s.printf("created %s %s\n", item.ProductCode, item.ProductName)
	if err := s.checkout.Load(ctx); err != nil {
		s.log.Warn("checkout reload failed", zap.Error(err))
	}
	return nil
}

func (s *Shell) cmdUpdate(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: update <item> <qty>")
	}
	it, ok := s.inventory.Item(args[0])
	if !ok {
		return gateway.NewLocalValidation(fmt.Sprintf("no loaded item matches %q", args[0]))
	}
	n, err := parseQuantity(args[1])
	if err != nil {
		return err
	}
	if err := s.inventory.UpdateQuantity(ctx, it.ID, n); err != nil {
		return err
	}
	s.printf("%s quantity set to %d\n", it.ProductCode, n)
	if err := s.checkout.Load(ctx); err != nil {
		s.log.Warn("checkout reload failed", zap.Error(err))
	}
	return nil
}

func (s *Shell) cmdDelete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: delete <item>")
	}
	it, ok := s.inventory.Item(args[0])
	if !ok {
		return gateway.NewLocalValidation(fmt.Sprintf("no loaded item matches %q", args[0]))
	}
	if err := s.inventory.Delete(ctx, it.ID); err != nil {
		return err
	}
	s.printf("deleted %s\n", it.ProductCode)
	if err := s.checkout.Load(ctx); err != nil {
		s.log.Warn("checkout reload failed", zap.Error(err))
	}
	return nil
}
