package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	domainErrors "github.com/cassiomorais/expresscheckout/internal/domain/errors"
	"github.com/cassiomorais/expresscheckout/internal/domain/payment"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	sandboxEndpoint = "https://api-3t.sandbox.paypal.com/nvp"
	liveEndpoint    = "https://api-3t.paypal.com/nvp"

	sandboxRedirect = "https://www.sandbox.paypal.com/cgi-bin/webscr?cmd=_express-checkout"
	liveRedirect    = "https://www.paypal.com/cgi-bin/webscr?cmd=_express-checkout"

	defaultAPIVersion = "124.0"
	maxResponseBytes  = 1 << 20
)

// NVPConfig configures the name-value-pair API client.
type NVPConfig struct {
	Credentials Credentials
	Timeout     time.Duration
	// Endpoint and RedirectURL override the environment defaults.
	Endpoint    string
	RedirectURL string
	Version     string
}

// NVPClient talks to the gateway's classic NVP API. Calls are never retried.
type NVPClient struct {
	creds       Credentials
	endpoint    string
	redirectURL string
	version     string
	httpClient  *http.Client
	logger      zerolog.Logger
}

func NewNVPClient(cfg NVPConfig, logger zerolog.Logger) *NVPClient {
	endpoint, redirect := sandboxEndpoint, sandboxRedirect
	if cfg.Credentials.Environment == Live {
		endpoint, redirect = liveEndpoint, liveRedirect
	}
	if cfg.Endpoint != "" {
		endpoint = cfg.Endpoint
	}
	if cfg.RedirectURL != "" {
		redirect = cfg.RedirectURL
	}
	version := cfg.Version
	if version == "" {
		version = defaultAPIVersion
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &NVPClient{
		creds:       cfg.Credentials,
		endpoint:    endpoint,
		redirectURL: redirect,
		version:     version,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger.With().Str("component", "nvp_client").Logger(),
	}
}

func (c *NVPClient) Name() string { return "paypal_express" }

func (c *NVPClient) CheckoutURL(token string) string {
	sep := "?"
	if strings.Contains(c.redirectURL, "?") {
		sep = "&"
	}
	return c.redirectURL + sep + "token=" + url.QueryEscape(token) + "&useraction=commit"
}

func (c *NVPClient) SetExpressCheckout(ctx context.Context, req SetExpressCheckoutRequest) (*SetExpressCheckoutResponse, error) {
	const op = "SetExpressCheckout"

	params := url.Values{}
	params.Set("RETURNURL", req.ReturnURL)
	params.Set("CANCELURL", req.CancelURL)
	params.Set("PAYMENTREQUEST_0_PAYMENTACTION", PaymentActionSale)
	encodeDetails(params, req.Details)

	values, err := c.call(ctx, op, params)
	if err != nil {
		return nil, err
	}

	resp := &SetExpressCheckoutResponse{Response: parseResponse(values)}
	if !resp.Success() {
		return resp, nil
	}
	resp.Token = values.Get("TOKEN")
	if resp.Token == "" {
		return nil, &domainErrors.ProtocolError{Op: op, Reason: "successful response without TOKEN"}
	}
	return resp, nil
}

func (c *NVPClient) GetExpressCheckoutDetails(ctx context.Context, token string) (*CheckoutDetails, error) {
	const op = "GetExpressCheckoutDetails"

	params := url.Values{}
	params.Set("TOKEN", token)

	values, err := c.call(ctx, op, params)
	if err != nil {
		return nil, err
	}

	resp := &CheckoutDetails{Response: parseResponse(values)}
	if !resp.Success() {
		return resp, nil
	}

	resp.Token = values.Get("TOKEN")
	if resp.Token == "" {
		resp.Token = token
	}
	resp.PayerID = values.Get("PAYERID")
	resp.PayerEmail = values.Get("EMAIL")
	resp.PayerStatus = values.Get("PAYERSTATUS")

	details, err := decodeDetails(op, values)
	if err != nil {
		return nil, err
	}
	resp.Details = details
	return resp, nil
}

func (c *NVPClient) DoExpressCheckoutPayment(ctx context.Context, req DoExpressCheckoutPaymentRequest) (*PaymentResponse, error) {
	const op = "DoExpressCheckoutPayment"

	action := req.PaymentAction
	if action == "" {
		action = PaymentActionSale
	}

	params := url.Values{}
	params.Set("TOKEN", req.Token)
	params.Set("PAYERID", req.PayerID)
	params.Set("PAYMENTREQUEST_0_PAYMENTACTION", action)
	if req.ButtonSource != "" {
		params.Set("BUTTONSOURCE", req.ButtonSource)
	}
	encodeDetails(params, req.Details)

	values, err := c.call(ctx, op, params)
	if err != nil {
		return nil, err
	}

	resp := &PaymentResponse{Response: parseResponse(values)}
	if !resp.Success() {
		return resp, nil
	}

	for i := 0; ; i++ {
		prefix := "PAYMENTINFO_" + strconv.Itoa(i) + "_"
		txID := values.Get(prefix + "TRANSACTIONID")
		if txID == "" {
			break
		}
		info := PaymentInfo{
			TransactionID: txID,
			PaymentStatus: values.Get(prefix + "PAYMENTSTATUS"),
			Currency:      values.Get(prefix + "CURRENCYCODE"),
		}
		if amt := values.Get(prefix + "AMT"); amt != "" {
			cents, err := parseCents(op, prefix+"AMT", amt)
			if err != nil {
				return nil, err
			}
			info.AmountCents = cents
		}
		resp.PaymentInfo = append(resp.PaymentInfo, info)
	}
	if len(resp.PaymentInfo) == 0 {
		return nil, &domainErrors.ProtocolError{Op: op, Reason: "successful response without PAYMENTINFO_0_TRANSACTIONID"}
	}
	return resp, nil
}

func (c *NVPClient) RefundTransaction(ctx context.Context, req RefundRequest) (*RefundResponse, error) {
	const op = "RefundTransaction"

	refundType := req.RefundType
	if refundType == "" || refundType == payment.RefundNone {
		refundType = payment.RefundFull
	}
	source := req.RefundSource
	if source == "" {
		source = RefundSourceAny
	}

	params := url.Values{}
	params.Set("TRANSACTIONID", req.TransactionID)
	params.Set("REFUNDTYPE", string(refundType))
	params.Set("REFUNDSOURCE", source)
	if refundType == payment.RefundPartial {
		if req.Amount == nil {
			return nil, domainErrors.NewValidationError("amount", "required for a partial refund")
		}
		params.Set("AMT", req.Amount.Format())
		params.Set("CURRENCYCODE", req.Amount.Currency)
	}
	if req.Note != "" {
		params.Set("NOTE", req.Note)
	}

	values, err := c.call(ctx, op, params)
	if err != nil {
		return nil, err
	}

	resp := &RefundResponse{Response: parseResponse(values)}
	if !resp.Success() {
		return resp, nil
	}
	resp.RefundTransactionID = values.Get("REFUNDTRANSACTIONID")
	if resp.RefundTransactionID == "" {
		return nil, &domainErrors.ProtocolError{Op: op, Reason: "successful response without REFUNDTRANSACTIONID"}
	}
	resp.Currency = values.Get("CURRENCYCODE")
	if gross := values.Get("GROSSREFUNDAMT"); gross != "" {
		cents, err := parseCents(op, "GROSSREFUNDAMT", gross)
		if err != nil {
			return nil, err
		}
		resp.GrossRefundCents = cents
	}
	return resp, nil
}

// call posts one NVP request and returns the decoded answer. Only transport
// problems and unreadable answers are errors; a Failure ack is not.
func (c *NVPClient) call(ctx context.Context, method string, params url.Values) (url.Values, error) {
	params.Set("METHOD", method)
	params.Set("VERSION", c.version)
	params.Set("USER", c.creds.Login)
	params.Set("PWD", c.creds.Password)
	params.Set("SIGNATURE", c.creds.Signature)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("method", method).Dur("elapsed", time.Since(start)).Msg("gateway request failed")
		return nil, &domainErrors.NetworkError{Op: method, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.logger.Error().Err(err).Str("method", method).Msg("reading gateway response failed")
		return nil, &domainErrors.NetworkError{Op: method, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &domainErrors.ProtocolError{Op: method, Reason: fmt.Sprintf("unexpected HTTP status %d", resp.StatusCode)}
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, &domainErrors.ProtocolError{Op: method, Reason: "malformed response body"}
	}
	if values.Get("ACK") == "" {
		return nil, &domainErrors.ProtocolError{Op: method, Reason: "missing ACK"}
	}

	c.logger.Debug().
		Str("method", method).
		Str("ack", values.Get("ACK")).
		Str("correlation_id", values.Get("CORRELATIONID")).
		Dur("elapsed", time.Since(start)).
		Msg("gateway call")

	return values, nil
}

func parseResponse(values url.Values) Response {
	r := Response{
		Ack:           Ack(values.Get("ACK")),
		CorrelationID: values.Get("CORRELATIONID"),
	}
	for i := 0; ; i++ {
		n := strconv.Itoa(i)
		code := values.Get("L_ERRORCODE" + n)
		long := values.Get("L_LONGMESSAGE" + n)
		short := values.Get("L_SHORTMESSAGE" + n)
		if code == "" && long == "" && short == "" {
			break
		}
		r.Errors = append(r.Errors, ProcessorError{
			Code:         code,
			ShortMessage: short,
			LongMessage:  long,
			Severity:     values.Get("L_SEVERITYCODE" + n),
		})
	}
	return r
}

func encodeDetails(params url.Values, d PaymentDetails) {
	format := func(cents int64) string {
		return payment.Amount{ValueCents: cents, Currency: d.Currency}.Format()
	}

	params.Set("PAYMENTREQUEST_0_AMT", format(d.OrderTotal))
	params.Set("PAYMENTREQUEST_0_CURRENCYCODE", d.Currency)
	if d.InvoiceID != "" {
		params.Set("PAYMENTREQUEST_0_INVNUM", d.InvoiceID)
	}
	if d.Breakdown == nil {
		return
	}

	b := d.Breakdown
	params.Set("PAYMENTREQUEST_0_ITEMAMT", format(b.ItemTotal))
	params.Set("PAYMENTREQUEST_0_SHIPPINGAMT", format(b.ShippingTotal))
	params.Set("PAYMENTREQUEST_0_TAXAMT", format(b.TaxTotal))
	for i, item := range b.Items {
		n := strconv.Itoa(i)
		params.Set("L_PAYMENTREQUEST_0_NAME"+n, item.Name)
		if item.Number != "" {
			params.Set("L_PAYMENTREQUEST_0_NUMBER"+n, item.Number)
		}
		params.Set("L_PAYMENTREQUEST_0_QTY"+n, strconv.Itoa(item.Quantity))
		params.Set("L_PAYMENTREQUEST_0_AMT"+n, format(item.AmountCents))
		if item.Category != "" {
			params.Set("L_PAYMENTREQUEST_0_ITEMCATEGORY"+n, item.Category)
		}
	}
}

func decodeDetails(op string, values url.Values) (PaymentDetails, error) {
	d := PaymentDetails{
		Currency:  values.Get("PAYMENTREQUEST_0_CURRENCYCODE"),
		InvoiceID: values.Get("PAYMENTREQUEST_0_INVNUM"),
	}

	total := values.Get("PAYMENTREQUEST_0_AMT")
	if total == "" {
		return d, &domainErrors.ProtocolError{Op: op, Reason: "successful response without PAYMENTREQUEST_0_AMT"}
	}
	cents, err := parseCents(op, "PAYMENTREQUEST_0_AMT", total)
	if err != nil {
		return d, err
	}
	d.OrderTotal = cents

	itemTotal := values.Get("PAYMENTREQUEST_0_ITEMAMT")
	if itemTotal == "" {
		return d, nil
	}

	b := &Breakdown{}
	fields := []struct {
		key string
		dst *int64
	}{
		{"PAYMENTREQUEST_0_ITEMAMT", &b.ItemTotal},
		{"PAYMENTREQUEST_0_SHIPPINGAMT", &b.ShippingTotal},
		{"PAYMENTREQUEST_0_TAXAMT", &b.TaxTotal},
	}
	for _, f := range fields {
		v := values.Get(f.key)
		if v == "" {
			continue
		}
		if *f.dst, err = parseCents(op, f.key, v); err != nil {
			return d, err
		}
	}

	for i := 0; ; i++ {
		n := strconv.Itoa(i)
		name := values.Get("L_PAYMENTREQUEST_0_NAME" + n)
		amt := values.Get("L_PAYMENTREQUEST_0_AMT" + n)
		if name == "" && amt == "" {
			break
		}
		item := Item{
			Name:     name,
			Number:   values.Get("L_PAYMENTREQUEST_0_NUMBER" + n),
			Category: values.Get("L_PAYMENTREQUEST_0_ITEMCATEGORY" + n),
			Quantity: 1,
		}
		if qty := values.Get("L_PAYMENTREQUEST_0_QTY" + n); qty != "" {
			q, err := strconv.Atoi(qty)
			if err != nil {
				return d, &domainErrors.ProtocolError{Op: op, Reason: "malformed L_PAYMENTREQUEST_0_QTY" + n}
			}
			item.Quantity = q
		}
		if item.AmountCents, err = parseCents(op, "L_PAYMENTREQUEST_0_AMT"+n, amt); err != nil {
			return d, err
		}
		b.Items = append(b.Items, item)
	}

	d.Breakdown = b
	return d, nil
}

func parseCents(op, field, value string) (int64, error) {
	dec, err := decimal.NewFromString(value)
	if err != nil {
		return 0, &domainErrors.ProtocolError{Op: op, Reason: "malformed amount in " + field}
	}
	amount, err := payment.AmountFromDecimal(dec, "")
	if err != nil {
		return 0, &domainErrors.ProtocolError{Op: op, Reason: "malformed amount in " + field}
	}
	return amount.ValueCents, nil
}
