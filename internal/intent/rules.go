package intent

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Label is the provisional topic assigned by the rule pass or the model.
type Label string

const (
	LabelFeeQuestion  Label = "fee_question"
	LabelAskFreeship  Label = "ask_freeship"
	LabelFeeComplaint Label = "fee_complaint"
	LabelSmalltalk    Label = "smalltalk"
	LabelOther        Label = "other"
)

func (l Label) valid() bool {
	switch l {
	case LabelFeeQuestion, LabelAskFreeship, LabelFeeComplaint, LabelSmalltalk:
		return true
	default:
		return false
	}
}

// ShipRelated reports whether l maps to the ship_fee intent.
func (l Label) ShipRelated() bool {
	return l == LabelFeeQuestion || l == LabelAskFreeship || l == LabelFeeComplaint
}

const (
	scoreWantsFree   = 0.9
	scoreFeeQuestion = 0.85
	scoreShipKeyword = 0.6
	scoreSmalltalk   = 0.85
)

// word wraps a pattern so it only matches as a whole word. RE2 \b is ASCII
// only, which breaks on Vietnamese letters.
func word(p string) string {
	return `(?:^|[^\p{L}\p{N}])(?:` + p + `)(?:$|[^\p{L}\p{N}])`
}

func anyOf(patterns ...string) *regexp.Regexp {
	return regexp.MustCompile(strings.Join(patterns, "|"))
}

var (
	shipKeywords = anyOf(
		word(`ship`),
		`shipping`,
		`phí\s*ship`,
		`vận\s*chuyển`,
		`miễn\s*ship`,
		`free\s*ship`,
	)
	cancelKeywords = anyOf(
		`hủy`, `huỷ`,
		`ko\s*lấy\s*hàng`,
		`không\s*lấy\s*hàng`,
		`không\s*lấy\s*nữa`,
		word(`cancel`),
		`bom\s*hàng`,
	)
	wantsFreeKeywords = anyOf(
		`miễn\s*ship`,
		`free\s*ship`,
		`freeship`,
		`miễn\s*phí\s*vận\s*chuyển`,
		`miễn\s*phí\s*ship`,
		`giảm\s*ship`,
		`bớt\s*ship`,
		`giảm\s*phí\s*ship`,
		`bớt\s*phí\s*ship`,
	)
	feeAmountKeywords = anyOf(
		`bao\s*nhiêu`,
		`mất\s*bao\s*nhiêu`,
		word(`nhiêu`),
		`bao\s*tiền`,
		`tiền\s*ship`,
		`phí\s*vận\s*chuyển`,
		`phí\s*ship`,
	)
	complaintKeywords = anyOf(
		`đắt\s*(?:quá|thế|vậy|vãi|ghê)`,
		`mắc\s*(?:quá|thế|vậy|ghê)`,
		`cao\s*(?:quá|thế|vậy|ghê)`,
		`ship\s*đắt`,
		`phí\s*ship\s*(?:đắt|mắc|cao)`,
		`sao\s*(?:ship|phí\s*ship)\s*(?:đắt|mắc|cao)`,
		word(`chát`),
		`too\s*expensive`,
	)
	smalltalkKeywords = anyOf(
		`^(?:hi|hello|alo|chào|chao|chào\s*shop|hi\s*shop)$`,
		`cảm\s*ơn|thanks|thank\s*you|`+word(`tks`),
		word(`ok|oke|oki|okay|được\s*rồi|vâng|dạ|ừ|uhm|ừm`),
	)
)

// RuleResult is the outcome of the rule pass.
type RuleResult struct {
	Label          Label
	Score          float64
	ShipKeyword    bool
	WantsFree      bool
	CancelThreat   bool
	AboutFeeAmount bool
	IsComplaint    bool
	IsSmalltalk    bool
}

// DetectRules runs the pattern families over the NFC-normalised, lower-cased
// text and scores
// the result with fixed precedence: wants-free, then fee-amount or complaint,
// then a bare shipping keyword.
func DetectRules(text string) RuleResult {
	t := strings.ToLower(strings.TrimSpace(norm.NFC.String(text)))

	r := RuleResult{
		ShipKeyword:    shipKeywords.MatchString(t),
		WantsFree:      wantsFreeKeywords.MatchString(t),
		CancelThreat:   cancelKeywords.MatchString(t),
		AboutFeeAmount: feeAmountKeywords.MatchString(t),
		IsComplaint:    complaintKeywords.MatchString(t),
	}

	switch {
	case r.WantsFree:
		r.Score = scoreWantsFree
	case r.AboutFeeAmount || r.IsComplaint:
		r.Score = scoreFeeQuestion
	case r.ShipKeyword:
		r.Score = scoreShipKeyword
	}

	r.IsSmalltalk = smalltalkKeywords.MatchString(t) &&
		!r.WantsFree && !r.AboutFeeAmount && !r.CancelThreat && !r.IsComplaint && !r.ShipKeyword
	if r.IsSmalltalk && r.Score < scoreSmalltalk {
		r.Score = scoreSmalltalk
	}

	switch {
	case r.WantsFree:
		r.Label = LabelAskFreeship
	case r.IsComplaint:
		r.Label = LabelFeeComplaint
	case r.AboutFeeAmount, r.ShipKeyword:
		r.Label = LabelFeeQuestion
	case r.IsSmalltalk:
		r.Label = LabelSmalltalk
	default:
		r.Label = LabelOther
	}
	return r
}
