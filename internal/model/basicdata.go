package model

// CodeCategory describes one exportable code table slice. Key is the JSON
// dataset key in the output envelope, Dir the directory segment.
type CodeCategory struct {
	Type string `json:"type"`
	Key  string `json:"key"`
	Name string `json:"name"`
	Dir  string `json:"dir"`
}

// CodeCategories are the reference code types exported per country,
// keyed by fcode_type in t_code_info.
var CodeCategories = []CodeCategory{
	{Type: "0001", Key: "uomCodes", Name: "UOM codes", Dir: "uom-codes"},
	{Type: "0003", Key: "industryCodes", Name: "industry codes", Dir: "industry-codes"},
	{Type: "0004", Key: "paymentMeans", Name: "payment means", Dir: "payment-means"},
	{Type: "0005", Key: "allowanceReasonCodes", Name: "allowance/charge reason codes", Dir: "allowance-reason-codes"},
	{Type: "0006", Key: "chargeCodes", Name: "charge codes", Dir: "charge-codes"},
	{Type: "0007", Key: "dutyTaxFeeCategoryCodes", Name: "duty/tax/fee category codes", Dir: "duty-tax-fee-category-codes"},
	{Type: "0008", Key: "taxCategoryCodes", Name: "tax category codes", Dir: "tax-category-codes"},
	{Type: "0009", Key: "taxExemptionReasonCodes", Name: "tax exemption reason codes", Dir: "tax-exemption-reason-codes"},
}

// CodeInfo is one row of t_code_info in export form.
type CodeInfo struct {
	ID          string `json:"id"`
	Country     string `json:"country"`
	CodeType    string `json:"codeType"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsSystem    int    `json:"isSystem"`
	Active      int    `json:"active"`
}

// Currency is one row of t_currency in export form.
type Currency struct {
	Code            string `json:"code"`
	Name            string `json:"name"`
	EnglishName     string `json:"englishName"`
	Symbol          string `json:"symbol"`
	UnitPrecision   int    `json:"unitPrecision"`
	AmountPrecision int    `json:"amountPrecision"`
}

// InvoiceType is one row of t_invoice_type in export form.
type InvoiceType struct {
	ID            string `json:"id"`
	InvoiceCode   string `json:"invoiceCode"`
	DescriptionEn string `json:"descriptionEn"`
	DescriptionCn string `json:"descriptionCn"`
	SelfBilled    int    `json:"selfbilled"`
	TaxType       string `json:"taxType"`
	CountryName   string `json:"countryName"`
	CountryCode   string `json:"countryCode"`
	Active        int    `json:"active"`
	CreateTime    string `json:"createTime"`
	UpdateTime    string `json:"updateTime"`
}

// ExportMeta is the metadata envelope wrapped around every reference data
// file.
type ExportMeta struct {
	ExportTime  string `json:"exportTime"`
	RecordCount int    `json:"recordCount"`
	Scope       string `json:"scope"`
	Country     string `json:"country,omitempty"`
	CodeType    string `json:"codeType,omitempty"`
}
