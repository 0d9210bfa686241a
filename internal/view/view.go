// Package view renders the storefront page from a session snapshot.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/pr-poehali-dev/zdrav-project/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

// Brand is the shop name shown in the header and footer.
const Brand = "ÉLÉGANCE"

// Sheet steps.
const (
	StepEmpty = "empty"
	StepItems = "items"
	StepForm  = "form"
)

// ProductCard is one tile of the catalog grid.
type ProductCard struct {
	domain.Product
	PriceText string
}

// Line is one cart line in the sheet.
type Line struct {
	domain.CartItem
	PriceText    string
	SubtotalText string
}

// Field is one input of the checkout form.
type Field struct {
	Name  string
	Label string
	Type  string
	Value string
	Error string
}

// Toast is a pending notification.
type Toast struct {
	Message string
	Kind    string
}

// Page is everything the page template needs.
type Page struct {
	Brand    string
	Products []ProductCard

	// CartCount is the number of distinct products, shown on the header badge.
	CartCount int
	SheetOpen bool
	Step      string
	Lines     []Line
	TotalText string

	Form        domain.CheckoutForm
	Fields      []Field
	CanSubmit   bool
	FieldErrors map[string]string
	FormError   string

	Toasts []Toast
}

// PageInput carries the state a page is built from.
type PageInput struct {
	Products      []domain.Product
	Session       *domain.Session
	Notifications []domain.Notification

	// SubmitErr is the rejection of the submit being re-rendered, if any.
	SubmitErr error
}

// NewPage builds the view model. A cart that became empty while on the
// checkout step shows the empty display.
func NewPage(in PageInput) Page {
	p := Page{
		Brand:       Brand,
		Products:    make([]ProductCard, 0, len(in.Products)),
		FieldErrors: FieldErrors(in.SubmitErr),
		FormError:   FormError(in.SubmitErr),
	}
	for _, prod := range in.Products {
		p.Products = append(p.Products, ProductCard{Product: prod, PriceText: FormatPrice(prod.Price)})
	}
	for _, n := range in.Notifications {
		p.Toasts = append(p.Toasts, Toast{Message: n.Message, Kind: string(n.Kind)})
	}

	sess := in.Session
	if sess == nil {
		p.Step = StepEmpty
		p.TotalText = FormatPrice(0)
		return p
	}

	p.CartCount = sess.Cart.Len()
	p.SheetOpen = sess.State.SheetOpen()
	p.Form = sess.Form
	p.Fields = formFields(sess.Form, p.FieldErrors)
	p.CanSubmit = sess.Form.CanSubmit()
	p.TotalText = FormatPrice(sess.Cart.TotalPrice())

	switch {
	case sess.Cart.IsEmpty():
		p.Step = StepEmpty
	case sess.State == domain.StateCheckoutForm:
		p.Step = StepForm
	default:
		p.Step = StepItems
	}

	for _, it := range sess.Cart.Snapshot() {
		p.Lines = append(p.Lines, Line{
			CartItem:     it,
			PriceText:    FormatPrice(it.Price),
			SubtotalText: FormatPrice(it.Subtotal()),
		})
	}
	return p
}

func formFields(f domain.CheckoutForm, errs map[string]string) []Field {
	return []Field{
		{Name: "name", Label: "Имя", Type: "text", Value: f.Name, Error: errs["name"]},
		{Name: "email", Label: "Email", Type: "email", Value: f.Email, Error: errs["email"]},
		{Name: "phone", Label: "Телефон", Type: "tel", Value: f.Phone, Error: errs["phone"]},
		{Name: "address", Label: "Адрес доставки", Type: "text", Value: f.Address, Error: errs["address"]},
	}
}

// Renderer executes the embedded page templates.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// MustNewRenderer is NewRenderer for compiled-in templates that cannot fail
// outside of development.
func MustNewRenderer() *Renderer {
	r, err := NewRenderer()
	if err != nil {
		panic(err)
	}
	return r
}

// Render writes the full page. Nothing is written when execution fails.
func (r *Renderer) Render(w io.Writer, page Page) error {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "page", page); err != nil {
		return fmt.Errorf("render page: %w", err)
	}
	_, err := buf.WriteTo(w)
	return err
}
