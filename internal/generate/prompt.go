package generate

import (
	"fmt"
	"strings"
	"time"

	"feedsim/internal/util"
)

const jaItemShape = `{
  "tweets": [
    {
      "name": "ユーザー名（日本語、3-8文字）",
      "nameId": "ユーザーID（英数字、アンダースコア可）",
      "message": "%s"
    }
  ]
}`

const jaStyle = `ツイート内容は現実のTwitterに即して、キラキラしすぎず、絵文字の使用も最小限にしてください（ツイート内容に応じて使っても構いません）。
抽象的な名詞はできるだけ避け、具体的な商品名などの固有名詞を使用してください。固有名詞は鍵括弧で括らないでください。`

const enItemShape = `{
  "tweets": [
    {
      "name": "display name (3-16 characters)",
      "nameId": "handle (letters, digits, underscore)",
      "message": "%s"
    }
  ]
}`

const enStyle = `Keep posts realistic: not overly upbeat, minimal emoji unless the content calls for it.
Prefer concrete product and place names over abstract nouns.`

func formatDate(now time.Time, lang string) string {
	if lang == "en" {
		return now.Format("January 2, 2006")
	}
	return fmt.Sprintf("%d年%d月%d日", now.Year(), int(now.Month()), now.Day())
}

// maxQuotedRunes caps user text pasted into a prompt.
const maxQuotedRunes = 500

// buildPrompt renders the instruction for one chain step.
func buildPrompt(req Request, useSearch bool, lang string, now time.Time) string {
	date := formatDate(now, lang)
	req.OriginalMessage = util.Truncate(req.OriginalMessage, maxQuotedRunes)
	req.Query = util.Truncate(req.Query, maxQuotedRunes)
	if lang == "en" {
		return buildEnglishPrompt(req, useSearch, date)
	}
	var b strings.Builder
	switch req.Kind {
	case KindReply:
		fmt.Fprintf(&b, "以下のツイートに対する返信を%d個生成してください：\n\n「%s」\n\n", req.Count, req.OriginalMessage)
		b.WriteString("各返信は以下の形式のJSONオブジェクトで返してください：\n")
		fmt.Fprintf(&b, jaItemShape, "返信内容（日本語、10-140文字）")
		b.WriteString("\n\n返信内容は、元のツイートが速報系、ネガティブ系である場合は批判的なものを、知識系である場合は追加知識を、それ以外の場合は共感を多めに生成してください。\n")
		b.WriteString(jaStyle)
		b.WriteString("\nツイート内容は主に短文で生成してください。ランダムに、単語のみ、長文などの他の形式も混ぜてください。\n")
	case KindSearch:
		fmt.Fprintf(&b, "今日は%sです。「%s」に関する詳細な情報を含むツイートを%d個生成してください。\n", date, req.Query, req.Count)
		if useSearch {
			fmt.Fprintf(&b, "Google検索で最新情報（%s時点）を調べて、正確な情報を提供してください。\n\n", date)
		} else {
			b.WriteString("一般的な知識で対応してください。\n\n")
		}
		b.WriteString("各ツイートは以下の形式のJSONオブジェクトで返してください：\n")
		fmt.Fprintf(&b, jaItemShape, "ツイート内容（日本語、10-140文字、検索クエリに関する具体的な情報を含む）")
		b.WriteString("\n\n")
		b.WriteString(jaStyle)
		b.WriteString("\n検索クエリに関する具体的な情報、統計、事実、意見などを含めてください。\n")
	default:
		topic := ""
		if req.Topic != "" {
			topic = "「" + req.Topic + "」に関する"
		}
		fmt.Fprintf(&b, "今日は%sです。%d個の、%sランダムなTwitterユーザーとそのツイートを生成してください。\n", date, req.Count, topic)
		if useSearch {
			fmt.Fprintf(&b, "タイトルに「本日」「今日」「速報」などの即時性の高いワードが入っている場合のみ、Google検索で最新情報（%s時点）を調べてください。それ以外の場合は検索せず、一般的な知識で対応してください。\n", date)
		} else {
			b.WriteString("最近のトレンドを反映してください。\n")
		}
		b.WriteString("各ユーザーは以下の形式のJSONオブジェクトで返してください：\n")
		fmt.Fprintf(&b, jaItemShape, "ツイート内容（日本語、10-140文字）")
		b.WriteString("\n\n")
		b.WriteString(jaStyle)
		b.WriteString("\n場合によって、「○○、△△すぎる」などのTwitterでよく使われる構文も使用してください。")
		b.WriteString("\nツイート内容は主に短文で生成してください。ランダムに、単語のみ、長文などの他の形式も混ぜてください。\n短文や単語のみの場合は句読点をつけないでください。\n")
	}
	b.WriteString("\nJSONのみを返してください。他の説明は不要です。")
	return b.String()
}

func buildEnglishPrompt(req Request, useSearch bool, date string) string {
	var b strings.Builder
	switch req.Kind {
	case KindReply:
		fmt.Fprintf(&b, "Write %d replies to this post:\n\n\"%s\"\n\n", req.Count, req.OriginalMessage)
		b.WriteString("Return them as a JSON object of this shape:\n")
		fmt.Fprintf(&b, enItemShape, "reply text (10-140 characters)")
		b.WriteString("\n\nCritical replies for breaking or negative news, extra facts for trivia, otherwise mostly sympathetic.\n")
	case KindSearch:
		fmt.Fprintf(&b, "Today is %s. Write %d posts with concrete information about \"%s\".\n", date, req.Count, req.Query)
		if useSearch {
			fmt.Fprintf(&b, "Use Google Search for information current as of %s.\n", date)
		}
		b.WriteString("Return them as a JSON object of this shape:\n")
		fmt.Fprintf(&b, enItemShape, "post text (10-140 characters, specific to the query)")
		b.WriteString("\n")
	default:
		topic := ""
		if req.Topic != "" {
			topic = " about \"" + req.Topic + "\""
		}
		fmt.Fprintf(&b, "Today is %s. Invent %d random social media users and one post each%s.\n", date, req.Count, topic)
		if useSearch {
			b.WriteString("Only search the web when the topic asks for today's or breaking news.\n")
		}
		b.WriteString("Return them as a JSON object of this shape:\n")
		fmt.Fprintf(&b, enItemShape, "post text (10-140 characters)")
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(enStyle)
	b.WriteString("\n\nReturn JSON only, no explanation.")
	return b.String()
}
