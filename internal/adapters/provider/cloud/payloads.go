package cloud

// Message payloads

type message struct {
	MessagingProduct string       `json:"messaging_product"`
	RecipientType    string       `json:"recipient_type"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             *textObj     `json:"text,omitempty"`
	Audio            *mediaObj    `json:"audio,omitempty"`
	Image            *mediaObj    `json:"image,omitempty"`
	Template         *templateObj `json:"template,omitempty"`
}

type textObj struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type mediaObj struct {
	Link string `json:"link"`
}

type templateObj struct {
	Name       string         `json:"name"`
	Language   languageObj    `json:"language"`
	Components []componentObj `json:"components"`
}

type languageObj struct {
	Code string `json:"code"`
}

type componentObj struct {
	Type       string         `json:"type"`
	Parameters []parameterObj `json:"parameters"`
}

type parameterObj struct {
	Type     string       `json:"type"`
	Text     *string      `json:"text,omitempty"`
	Image    *mediaObj    `json:"image,omitempty"`
	Currency *currencyObj `json:"currency,omitempty"`
	DateTime *dateTimeObj `json:"date_time,omitempty"`
}

type currencyObj struct {
	FallbackValue string `json:"fallback_value"`
	Code          string `json:"code"`
	Amount1000    int64  `json:"amount_1000"`
}

type dateTimeObj struct {
	FallbackValue string `json:"fallback_value"`
	Year          int    `json:"year"`
	Month         int    `json:"month"`
	DayOfMonth    int    `json:"day_of_month"`
	Hour          int    `json:"hour"`
	Minute        int    `json:"minute"`
	Calendar      string `json:"calendar"`
}

// Template registration payloads

type templateDefinition struct {
	Name       string              `json:"name"`
	Language   string              `json:"language"`
	Category   string              `json:"category"`
	Components []templateComponent `json:"components"`
}

type templateComponent struct {
	Type    string            `json:"type"`
	Format  string            `json:"format,omitempty"`
	Text    string            `json:"text,omitempty"`
	Example *componentExample `json:"example,omitempty"`
	Buttons []buttonDef       `json:"buttons,omitempty"`
}

type componentExample struct {
	HeaderText   []string   `json:"header_text,omitempty"`
	HeaderHandle []string   `json:"header_handle,omitempty"`
	BodyText     [][]string `json:"body_text,omitempty"`
}

type buttonDef struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type registerRequest struct {
	MessagingProduct string `json:"messaging_product"`
	PIN              string `json:"pin,omitempty"`
}
