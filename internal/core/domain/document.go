package domain

import (
	"strings"
	"time"
)

type DocType string

const (
	DocTypeLoanAgreement     DocType = "Loan Agreement"
	DocTypeMortgageContract  DocType = "Mortgage Contract"
	DocTypeCourtRuling       DocType = "Court Ruling"
	DocTypeAssetEvaluation   DocType = "Asset Evaluation"
	DocTypeTransferAgreement DocType = "Transfer Agreement"
	DocTypeUnknown           DocType = "Unknown"
)

var docTypeLabels = map[DocType]string{
	DocTypeLoanAgreement:     "借款合同",
	DocTypeMortgageContract:  "抵押担保合同",
	DocTypeCourtRuling:       "法院判决/裁定书",
	DocTypeAssetEvaluation:   "资产评估报告",
	DocTypeTransferAgreement: "债权转让协议",
	DocTypeUnknown:           "未知类型",
}

// KnownDocTypes lists the document categories a classifier may return, Unknown excluded.
func KnownDocTypes() []DocType {
	return []DocType{
		DocTypeLoanAgreement,
		DocTypeMortgageContract,
		DocTypeCourtRuling,
		DocTypeAssetEvaluation,
		DocTypeTransferAgreement,
	}
}

// Label returns the Chinese display name.
func (t DocType) Label() string {
	if label, ok := docTypeLabels[t]; ok {
		return label
	}
	return docTypeLabels[DocTypeUnknown]
}

func (t DocType) Valid() bool {
	_, ok := docTypeLabels[t]
	return ok
}

// ParseDocType accepts the English name or the Chinese label; everything else is Unknown.
func ParseDocType(raw string) DocType {
	value := strings.TrimSpace(raw)
	for docType, label := range docTypeLabels {
		if strings.EqualFold(value, string(docType)) || value == label {
			return docType
		}
	}
	return DocTypeUnknown
}

type DocumentStatus string

const (
	StatusUploaded       DocumentStatus = "Uploaded"
	StatusClassifying    DocumentStatus = "Classifying"
	StatusReadyToExtract DocumentStatus = "Ready"
	StatusExtracting     DocumentStatus = "Extracting"
	StatusReview         DocumentStatus = "Review Needed"
	StatusCompleted      DocumentStatus = "Completed"
)

type Document struct {
	ID            string         `json:"id"`
	ProjectID     string         `json:"project_id"`
	UploaderID    string         `json:"uploader_id,omitempty"`
	Name          string         `json:"name"`
	MimeType      string         `json:"mime_type"`
	StoragePath   string         `json:"storage_path,omitempty"`
	Type          DocType        `json:"type"`
	Status        DocumentStatus `json:"status"`
	Content       []string       `json:"content"`
	ExtractedData FieldMap       `json:"extracted_data,omitempty"`
	AppliedRuleID string         `json:"applied_rule_id,omitempty"`
	Error         string         `json:"error,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// FullText joins pages the way collaborators expect to receive the whole document.
func (d *Document) FullText() string {
	return strings.Join(d.Content, "\n")
}

func (d *Document) FirstPage() string {
	if len(d.Content) == 0 {
		return ""
	}
	return d.Content[0]
}

// Apply runs the lifecycle transition for event and stores the resulting status.
func (d *Document) Apply(event Event) error {
	next, err := Transition(d.Status, event)
	if err != nil {
		return err
	}
	d.Status = next
	return nil
}

// Clone returns a deep copy so repositories never share mutable state with callers.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	if d.Content != nil {
		out.Content = append([]string(nil), d.Content...)
	}
	out.ExtractedData = d.ExtractedData.Clone()
	return &out
}
