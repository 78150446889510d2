package gateway

// Wire shapes of the tokenized checkout API. Only the fields the service consumes are typed,
// the full body is kept as raw JSON on the transaction.

type grantRequest struct {
	AppKey    string `json:"app_key"`
	AppSecret string `json:"app_secret"`
}

type refreshRequest struct {
	AppKey       string `json:"app_key"`
	AppSecret    string `json:"app_secret"`
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	statusEnvelope
	IDToken      string `json:"id_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

type createRequest struct {
	Mode                  string `json:"mode"`
	PayerReference        string `json:"payerReference"`
	CallbackURL           string `json:"callbackURL"`
	Amount                string `json:"amount"`
	Currency              string `json:"currency"`
	Intent                string `json:"intent"`
	MerchantInvoiceNumber string `json:"merchantInvoiceNumber"`
}

type createResponse struct {
	statusEnvelope
	PaymentID         string `json:"paymentID"`
	BkashURL          string `json:"bkashURL"`
	TransactionStatus string `json:"transactionStatus"`
}

type paymentIDRequest struct {
	PaymentID string `json:"paymentID"`
}

type paymentResponse struct {
	statusEnvelope
	PaymentID             string `json:"paymentID"`
	TrxID                 string `json:"trxID"`
	TransactionStatus     string `json:"transactionStatus"`
	Amount                string `json:"amount"`
	Currency              string `json:"currency"`
	MerchantInvoiceNumber string `json:"merchantInvoiceNumber"`
}

// statusEnvelope carries the business status. Error answers use errorCode/errorMessage
// instead of statusCode/statusMessage.
type statusEnvelope struct {
	StatusCode    string `json:"statusCode"`
	StatusMessage string `json:"statusMessage"`
	ErrorCode     string `json:"errorCode"`
	ErrorMessage  string `json:"errorMessage"`
}

func (e statusEnvelope) status() (code, message string) {
	if e.ErrorCode != "" {
		return e.ErrorCode, e.ErrorMessage
	}
	return e.StatusCode, e.StatusMessage
}
