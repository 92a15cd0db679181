package routes

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/eventhub/internal/config"
	"github.com/example/eventhub/internal/models"
	"github.com/example/eventhub/internal/testutil"
)

func newTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	db := testutil.NewDB(t)
	cfg := &config.Config{
		JWTSecret:      testutil.JWTSecret,
		TokenExpires:   time.Hour,
		ReceiptBaseURL: "https://receipts.test",
		CORSOrigins:    "*",
	}
	return NewApp(db, cfg), db
}

type response struct {
	status int
	raw    []byte
	body   map[string]interface{}
}

func call(t *testing.T, app *fiber.App, method, path, token string, payload interface{}) response {
	t.Helper()

	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	raw, _ := io.ReadAll(resp.Body)

	out := response{status: resp.StatusCode, raw: raw}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out.body); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, raw, err)
		}
	}
	return out
}

func object(t *testing.T, r response, key string) map[string]interface{} {
	t.Helper()
	obj, ok := r.body[key].(map[string]interface{})
	if !ok {
		t.Fatalf("response %s has no %q object", r.raw, key)
	}
	return obj
}

func list(t *testing.T, r response, key string) []interface{} {
	t.Helper()
	items, ok := r.body[key].([]interface{})
	if !ok {
		t.Fatalf("response %s has no %q array", r.raw, key)
	}
	return items
}

func paymentCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&models.Payment{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestHealth(t *testing.T) {
	app, _ := newTestApp(t)
	r := call(t, app, http.MethodGet, "/health", "", nil)
	if r.status != fiber.StatusOK || r.body["status"] != "ok" {
		t.Fatalf("health = %d %s", r.status, r.raw)
	}
}

func TestCreatePaymentRecognizedMethods(t *testing.T) {
	app, db := newTestApp(t)
	token := testutil.Token(t, testutil.CreateUser(t, db, models.RoleAttendee))

	for _, method := range []string{"credit-card", "paypal"} {
		t.Run(method, func(t *testing.T) {
			r := call(t, app, http.MethodPost, "/api/payments", token, map[string]interface{}{
				"amount":         25.5,
				"payment_method": method,
			})
			if r.status != fiber.StatusCreated {
				t.Fatalf("status = %d, body %s", r.status, r.raw)
			}
			if r.body["success"] != true {
				t.Fatalf("success = %v", r.body["success"])
			}

			payment := object(t, r, "payment")
			if payment["status"] != "completed" {
				t.Errorf("status = %v", payment["status"])
			}
			receipt, _ := payment["receipt_url"].(string)
			id, _ := payment["payment_id"].(string)
			if id == "" || !strings.Contains(receipt, id) {
				t.Errorf("receipt_url %q does not reference payment %q", receipt, id)
			}
			if payment["amount"] != 25.5 || payment["payment_method"] != method {
				t.Errorf("payment = %v", payment)
			}
			for _, key := range []string{"user_id", "payment_date"} {
				if _, ok := payment[key]; !ok {
					t.Errorf("payment missing %q", key)
				}
			}
		})
	}
}

func TestCreatePaymentUnrecognizedMethodHasNullReceipt(t *testing.T) {
	app, db := newTestApp(t)
	token := testutil.Token(t, testutil.CreateUser(t, db, models.RoleVendor))

	r := call(t, app, http.MethodPost, "/api/payments", token, map[string]interface{}{
		"amount":         10,
		"payment_method": "crypto",
	})
	if r.status != fiber.StatusCreated {
		t.Fatalf("status = %d, body %s", r.status, r.raw)
	}

	payment := object(t, r, "payment")
	if payment["status"] != "completed" {
		t.Errorf("status = %v", payment["status"])
	}
	receipt, present := payment["receipt_url"]
	if !present || receipt != nil {
		t.Errorf("receipt_url = %v (present %v), want explicit null", receipt, present)
	}
}

func TestCreatePaymentValidation(t *testing.T) {
	app, db := newTestApp(t)
	token := testutil.Token(t, testutil.CreateUser(t, db, models.RoleAttendee))

	payloads := map[string]interface{}{
		"missing amount": map[string]interface{}{"payment_method": "paypal"},
		"missing method": map[string]interface{}{"amount": 10},
		"empty object":   map[string]interface{}{},
		"amount string":  map[string]interface{}{"amount": "ten", "payment_method": "paypal"},
		"blank method":   map[string]interface{}{"amount": 10, "payment_method": "  "},
		"sub-cent":       map[string]interface{}{"amount": 0.001, "payment_method": "paypal"},
	}

	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			r := call(t, app, http.MethodPost, "/api/payments", token, payload)
			if r.status != fiber.StatusBadRequest {
				t.Fatalf("status = %d, body %s", r.status, r.raw)
			}
			if r.body["success"] != false || r.body["message"] == "" {
				t.Fatalf("body = %s", r.raw)
			}
		})
	}

	if n := paymentCount(t, db); n != 0 {
		t.Fatalf("payments created = %d, want 0", n)
	}
}

func TestPaymentsRequireToken(t *testing.T) {
	app, db := newTestApp(t)

	for _, tc := range []struct{ method, path, token string }{
		{http.MethodPost, "/api/payments", ""},
		{http.MethodGet, "/api/payments", ""},
		{http.MethodGet, "/api/payments/" + uuid.NewString(), ""},
		{http.MethodGet, "/api/payments", "not-a-jwt"},
		{http.MethodGet, "/api/payments", testutil.Token(t, models.Identity{UserID: uuid.New(), Role: "superuser"})},
	} {
		r := call(t, app, tc.method, tc.path, tc.token, map[string]interface{}{"amount": 1, "payment_method": "paypal"})
		if r.status != fiber.StatusUnauthorized {
			t.Errorf("%s %s status = %d, want 401", tc.method, tc.path, r.status)
		}
		if r.body["success"] != false {
			t.Errorf("%s %s body = %s", tc.method, tc.path, r.raw)
		}
	}

	if n := paymentCount(t, db); n != 0 {
		t.Fatalf("payments created = %d, want 0", n)
	}
}

func TestPaymentHistoryOwnershipAndOrder(t *testing.T) {
	app, db := newTestApp(t)
	alice := testutil.CreateUser(t, db, models.RoleAttendee)
	bob := testutil.CreateUser(t, db, models.RoleAttendee)

	base := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	var want []string
	for _, offset := range []time.Duration{2 * time.Hour, 0, time.Hour} {
		p := models.Payment{
			UserID:        alice.UserID,
			Amount:        5,
			PaymentMethod: models.MethodPayPal,
			Status:        models.PaymentCompleted,
			PaymentDate:   base.Add(offset),
		}
		if err := db.Create(&p).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
		want = append(want, p.PaymentID.String())
	}
	// Seeded as T3, T1, T2; expected response order is T3, T2, T1.
	want = []string{want[0], want[2], want[1]}

	call(t, app, http.MethodPost, "/api/payments", testutil.Token(t, bob), map[string]interface{}{
		"amount": 99, "payment_method": "credit-card",
	})

	r := call(t, app, http.MethodGet, "/api/payments", testutil.Token(t, alice), nil)
	if r.status != fiber.StatusOK {
		t.Fatalf("status = %d, body %s", r.status, r.raw)
	}

	payments := list(t, r, "payments")
	if len(payments) != len(want) {
		t.Fatalf("len = %d, want %d", len(payments), len(want))
	}
	for i, item := range payments {
		p := item.(map[string]interface{})
		if p["payment_id"] != want[i] {
			t.Errorf("payments[%d] = %v, want %s", i, p["payment_id"], want[i])
		}
		if p["user_id"] != alice.UserID.String() {
			t.Errorf("payments[%d] owned by %v", i, p["user_id"])
		}
	}
}

func TestPaymentDetailsNotFoundIsIndistinguishable(t *testing.T) {
	app, db := newTestApp(t)
	owner := testutil.CreateUser(t, db, models.RoleAttendee)
	other := testutil.CreateUser(t, db, models.RoleAttendee)

	created := call(t, app, http.MethodPost, "/api/payments", testutil.Token(t, owner), map[string]interface{}{
		"amount": 12, "payment_method": "paypal",
	})
	id := object(t, created, "payment")["payment_id"].(string)

	own := call(t, app, http.MethodGet, "/api/payments/"+id, testutil.Token(t, owner), nil)
	if own.status != fiber.StatusOK || object(t, own, "payment")["payment_id"] != id {
		t.Fatalf("owner lookup = %d %s", own.status, own.raw)
	}

	foreign := call(t, app, http.MethodGet, "/api/payments/"+id, testutil.Token(t, other), nil)
	missing := call(t, app, http.MethodGet, "/api/payments/"+uuid.NewString(), testutil.Token(t, other), nil)

	for name, r := range map[string]response{"foreign": foreign, "missing": missing} {
		if r.status != fiber.StatusNotFound {
			t.Errorf("%s status = %d, want 404", name, r.status)
		}
		if r.body["success"] != false || r.body["message"] != "Payment not found" {
			t.Errorf("%s body = %s", name, r.raw)
		}
	}
	if !bytes.Equal(foreign.raw, missing.raw) {
		t.Errorf("foreign %s and missing %s responses differ", foreign.raw, missing.raw)
	}
}

func TestConcurrentPaymentsProduceIndependentRecords(t *testing.T) {
	app, db := newTestApp(t)
	user := testutil.CreateUser(t, db, models.RoleAttendee)
	token := testutil.Token(t, user)

	const requests = 2
	var wg sync.WaitGroup
	ids := make(chan string, requests)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := call(t, app, http.MethodPost, "/api/payments", token, map[string]interface{}{
				"amount": 40, "payment_method": "credit-card",
			})
			if r.status != fiber.StatusCreated {
				t.Errorf("status = %d, body %s", r.status, r.raw)
				return
			}
			ids <- r.body["payment"].(map[string]interface{})["payment_id"].(string)
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		seen[id] = true
	}
	if len(seen) != requests {
		t.Fatalf("distinct payment ids = %d, want %d", len(seen), requests)
	}
	if n := paymentCount(t, db); n != requests {
		t.Fatalf("stored payments = %d, want %d", n, requests)
	}
}

func TestRegisterLoginMe(t *testing.T) {
	app, _ := newTestApp(t)

	reg := call(t, app, http.MethodPost, "/api/auth/register", "", map[string]interface{}{
		"email":    "Vendor@Example.com",
		"password": "s3cret-pass",
		"name":     "<b>Val</b>",
		"role":     "vendor",
	})
	if reg.status != fiber.StatusCreated {
		t.Fatalf("register = %d %s", reg.status, reg.raw)
	}
	user := object(t, reg, "user")
	if user["email"] != "vendor@example.com" || user["role"] != "vendor" || user["name"] != "Val" {
		t.Fatalf("registered user = %v", user)
	}
	if _, leaked := user["password_hash"]; leaked {
		t.Fatal("password hash serialized")
	}

	dup := call(t, app, http.MethodPost, "/api/auth/register", "", map[string]interface{}{
		"email": "vendor@example.com", "password": "another-pass",
	})
	if dup.status != fiber.StatusConflict {
		t.Fatalf("duplicate register = %d %s", dup.status, dup.raw)
	}

	bad := call(t, app, http.MethodPost, "/api/auth/login", "", map[string]interface{}{
		"email": "vendor@example.com", "password": "wrong-pass",
	})
	if bad.status != fiber.StatusUnauthorized {
		t.Fatalf("bad login = %d %s", bad.status, bad.raw)
	}

	login := call(t, app, http.MethodPost, "/api/auth/login", "", map[string]interface{}{
		"email": "vendor@example.com", "password": "s3cret-pass",
	})
	if login.status != fiber.StatusOK {
		t.Fatalf("login = %d %s", login.status, login.raw)
	}
	token, _ := login.body["token"].(string)
	if token == "" {
		t.Fatalf("login returned no token: %s", login.raw)
	}

	me := call(t, app, http.MethodGet, "/api/auth/me", token, nil)
	if me.status != fiber.StatusOK || object(t, me, "user")["email"] != "vendor@example.com" {
		t.Fatalf("me = %d %s", me.status, me.raw)
	}
}

func TestRegisterValidation(t *testing.T) {
	app, _ := newTestApp(t)

	for name, payload := range map[string]map[string]interface{}{
		"admin role":     {"email": "a@example.com", "password": "long-enough", "role": "admin"},
		"unknown role":   {"email": "b@example.com", "password": "long-enough", "role": "wizard"},
		"short password": {"email": "c@example.com", "password": "short"},
		"no email":       {"password": "long-enough"},
	} {
		t.Run(name, func(t *testing.T) {
			r := call(t, app, http.MethodPost, "/api/auth/register", "", payload)
			if r.status != fiber.StatusBadRequest {
				t.Fatalf("status = %d %s", r.status, r.raw)
			}
		})
	}
}

// A registration that passes the existence check but loses the insert race to
// another request for the same email still gets 409.
func TestRegisterDuplicateRaceIsConflict(t *testing.T) {
	app, db := newTestApp(t)

	var armed atomic.Bool
	armed.Store(true)
	if err := db.Callback().Query().After("gorm:query").Register("test:competing_register", func(tx *gorm.DB) {
		if tx.Statement.Table != "users" || !armed.CompareAndSwap(true, false) {
			return
		}
		competing := models.User{Email: "race@example.com", PasswordHash: "x", Role: models.RoleAttendee}
		// The lookup ran outside a transaction, so the connection is free again.
		if err := db.WithContext(tx.Statement.Context).Create(&competing).Error; err != nil {
			t.Errorf("competing insert: %v", err)
		}
	}); err != nil {
		t.Fatalf("register callback: %v", err)
	}

	r := call(t, app, http.MethodPost, "/api/auth/register", "", map[string]interface{}{
		"email": "race@example.com", "password": "long-enough",
	})
	if r.status != fiber.StatusConflict {
		t.Fatalf("register = %d %s, want 409", r.status, r.raw)
	}
}

func TestEventAndBookingFlow(t *testing.T) {
	app, db := newTestApp(t)
	organizer := testutil.Token(t, testutil.CreateUser(t, db, models.RoleOrganizer))
	vendorA := testutil.Token(t, testutil.CreateUser(t, db, models.RoleVendor))
	vendorB := testutil.Token(t, testutil.CreateUser(t, db, models.RoleVendor))
	attendee := testutil.Token(t, testutil.CreateUser(t, db, models.RoleAttendee))

	eventBody := map[string]interface{}{
		"title":     "Craft Fair",
		"venue":     "Town Hall",
		"starts_at": time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
		"capacity":  1,
	}

	if r := call(t, app, http.MethodPost, "/api/events", attendee, eventBody); r.status != fiber.StatusForbidden {
		t.Fatalf("attendee create event = %d, want 403", r.status)
	}
	if r := call(t, app, http.MethodPost, "/api/events", vendorA, eventBody); r.status != fiber.StatusForbidden {
		t.Fatalf("vendor create event = %d, want 403", r.status)
	}

	created := call(t, app, http.MethodPost, "/api/events", organizer, eventBody)
	if created.status != fiber.StatusCreated {
		t.Fatalf("create event = %d %s", created.status, created.raw)
	}
	eventID := object(t, created, "event")["id"].(string)

	listed := call(t, app, http.MethodGet, "/api/events", attendee, nil)
	if listed.status != fiber.StatusOK || len(list(t, listed, "events")) != 1 {
		t.Fatalf("list events = %d %s", listed.status, listed.raw)
	}

	if r := call(t, app, http.MethodPost, "/api/bookings", organizer, map[string]interface{}{"event_id": eventID}); r.status != fiber.StatusForbidden {
		t.Fatalf("organizer booking = %d, want 403", r.status)
	}

	booked := call(t, app, http.MethodPost, "/api/bookings", vendorA, map[string]interface{}{"event_id": eventID, "notes": "corner slot"})
	if booked.status != fiber.StatusCreated {
		t.Fatalf("book = %d %s", booked.status, booked.raw)
	}

	full := call(t, app, http.MethodPost, "/api/bookings", vendorB, map[string]interface{}{"event_id": eventID})
	if full.status != fiber.StatusConflict {
		t.Fatalf("book full event = %d %s", full.status, full.raw)
	}

	mine := call(t, app, http.MethodGet, "/api/bookings", vendorA, nil)
	if mine.status != fiber.StatusOK || len(list(t, mine, "bookings")) != 1 {
		t.Fatalf("vendor bookings = %d %s", mine.status, mine.raw)
	}

	roster := call(t, app, http.MethodGet, "/api/events/"+eventID+"/bookings", organizer, nil)
	if roster.status != fiber.StatusOK || len(list(t, roster, "bookings")) != 1 {
		t.Fatalf("event bookings = %d %s", roster.status, roster.raw)
	}

	if r := call(t, app, http.MethodDelete, "/api/events/"+eventID, organizer, nil); r.status != fiber.StatusConflict {
		t.Fatalf("delete booked event = %d %s", r.status, r.raw)
	}

	bookingID := object(t, booked, "booking")["id"].(string)
	if r := call(t, app, http.MethodDelete, "/api/bookings/"+bookingID, vendorB, nil); r.status != fiber.StatusNotFound {
		t.Fatalf("cancel foreign booking = %d, want 404", r.status)
	}
	if r := call(t, app, http.MethodDelete, "/api/bookings/"+bookingID, vendorA, nil); r.status != fiber.StatusOK {
		t.Fatalf("cancel booking = %d %s", r.status, r.raw)
	}
	if r := call(t, app, http.MethodDelete, "/api/events/"+eventID, organizer, nil); r.status != fiber.StatusOK {
		t.Fatalf("delete event = %d %s", r.status, r.raw)
	}
	if r := call(t, app, http.MethodGet, "/api/events/"+eventID, attendee, nil); r.status != fiber.StatusNotFound {
		t.Fatalf("get deleted event = %d, want 404", r.status)
	}
}

func TestCreateEventStoresPlainTextVerbatim(t *testing.T) {
	app, db := newTestApp(t)
	organizer := testutil.Token(t, testutil.CreateUser(t, db, models.RoleOrganizer))

	created := call(t, app, http.MethodPost, "/api/events", organizer, map[string]interface{}{
		"title":     "Rock & Roll <i>Night</i>",
		"venue":     `Tom's "Bar"`,
		"starts_at": time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
		"capacity":  2,
	})
	if created.status != fiber.StatusCreated {
		t.Fatalf("create event = %d %s", created.status, created.raw)
	}

	var stored models.Event
	id := object(t, created, "event")["id"].(string)
	if err := db.First(&stored, "id = ?", id).Error; err != nil {
		t.Fatalf("load event: %v", err)
	}
	if stored.Title != "Rock & Roll Night" {
		t.Errorf("title = %q", stored.Title)
	}
	if stored.Venue != `Tom's "Bar"` {
		t.Errorf("venue = %q", stored.Venue)
	}
}

func TestAdminLedger(t *testing.T) {
	app, db := newTestApp(t)
	admin := testutil.Token(t, testutil.CreateUser(t, db, models.RoleAdmin))
	payer := testutil.CreateUser(t, db, models.RoleAttendee)

	for i := 0; i < 3; i++ {
		call(t, app, http.MethodPost, "/api/payments", testutil.Token(t, payer), map[string]interface{}{
			"amount": 10 + i, "payment_method": "paypal",
		})
	}

	if r := call(t, app, http.MethodGet, "/api/admin/payments", testutil.Token(t, payer), nil); r.status != fiber.StatusForbidden {
		t.Fatalf("non-admin ledger = %d, want 403", r.status)
	}

	r := call(t, app, http.MethodGet, "/api/admin/payments?page=1&limit=2", admin, nil)
	if r.status != fiber.StatusOK {
		t.Fatalf("ledger = %d %s", r.status, r.raw)
	}
	if got := len(list(t, r, "payments")); got != 2 {
		t.Errorf("page size = %d, want 2", got)
	}
	if r.body["total"] != float64(3) || r.body["limit"] != float64(2) {
		t.Errorf("ledger meta = %s", r.raw)
	}
}
