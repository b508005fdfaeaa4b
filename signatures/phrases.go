package signatures

// AcceptPhrases are lower-case "accept" button labels across languages.
// Matching is done on case-folded, NFKC-normalized text.
var AcceptPhrases = []string{
	// en
	"accept all", "accept all cookies", "accept cookies", "allow all", "allow all cookies",
	"allow cookies", "i accept", "accept", "agree", "i agree", "agree and close",
	"got it", "ok", "okay", "yes, i agree", "accept & close", "accept and continue",
	// de
	"alle akzeptieren", "akzeptieren", "alle cookies akzeptieren", "zustimmen",
	"alle zulassen", "einverstanden", "ich stimme zu",
	// fr
	"tout accepter", "accepter", "accepter tout", "accepter et fermer", "j'accepte",
	"autoriser tous les cookies",
	// es
	"aceptar todo", "aceptar", "aceptar todas", "aceptar cookies", "acepto", "permitir todas",
	// it
	"accetta tutto", "accetta", "accetta tutti", "accetto", "consenti tutti",
	// pt
	"aceitar todos", "aceitar", "aceito", "concordo", "permitir todos",
	// nl
	"alles accepteren", "accepteren", "akkoord", "alle cookies accepteren", "alles toestaan",
	// sv / da / no
	"acceptera alla", "godkänn alla", "acceptér alle", "accepter alle", "tillad alle", "godta alle",
	// pl
	"akceptuję", "zaakceptuj wszystkie", "akceptuj wszystkie", "zgadzam się",
	// cs / fi / tr / ro
	"přijmout vše", "hyväksy kaikki", "tümünü kabul et", "kabul et", "accept toate",
	// ja / zh / ko / ru
	"すべて同意", "同意する", "全部接受", "接受全部", "同意", "모두 동의", "동의", "принять все", "принять",
}

// RejectWords disqualify a candidate button even when it contains an
// accept phrase ("accept necessary only", "do not accept").
var RejectWords = []string{
	"reject", "decline", "deny", "necessary only", "only necessary", "essential only",
	"settings", "preferences", "customize", "customise", "manage", "options", "more info",
	"ablehnen", "einstellungen", "refuser", "paramètres", "rechazar", "configurar",
	"rifiuta", "rejeitar", "weigeren", "avvisa", "odrzuć", "不同意", "拒否", "отклонить",
	"not accept", "don't accept", "do not accept",
}

// MaxButtonTextLength bounds the label length of an accept button; longer
// text is almost always a paragraph of banner copy.
const MaxButtonTextLength = 60
