package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	modelName = "gemini-2.0-flash-001"

	// maxToolRounds bounds how many tool calls one question may chain.
	maxToolRounds = 5
)

// ErrNoAPIKey is returned when the assistant is asked something without a configured key.
var ErrNoAPIKey = errors.New("server missing GEMINI_API_KEY")

// Agent answers questions about the stores by letting Gemini call the inventory and report tools.
type Agent struct {
	apiKey string
	tools  *Tools
	loc    *time.Location
}

func NewAgent(apiKey string, tools *Tools, loc *time.Location) *Agent {
	if loc == nil {
		loc = time.Local
	}
	return &Agent{apiKey: apiKey, tools: tools, loc: loc}
}

func (a *Agent) systemPrompt(userMessage string) string {
	today := time.Now().In(a.loc).Format("2006-01-02")

	return fmt.Sprintf(`SYSTEM: Today is %s. You are the assistant of a two-store shop (store1, store2).
Prices are kept in two currencies, USD and LRD, that are never converted into each other.

RULES:
1. UPDATE: If a user asks to change a product's price by NAME, do NOT ask them for the ID. Instead:
   - Call 'check_inventory' for the store to find the ID.
   - Call 'update_product_prices' using that ID.

2. READ: If a user asks for PRICE, STOCK or DETAILS of a product:
   - You MUST call 'check_inventory' and read the item from the result.

3. SALES: For a single day use 'get_daily_report'. For a period use 'get_sales_report'.

4. If the user does not name a store, ask which one.

USER: %s`, today, userMessage)
}

// Ask runs one question through the model, executing tool calls until the model answers in text.
func (a *Agent) Ask(ctx context.Context, userMessage string) (string, error) {
	if a.apiKey == "" {
		return "", ErrNoAPIKey
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(a.apiKey))
	if err != nil {
		return "", err
	}
	defer client.Close()

	model := client.GenerativeModel(modelName)
	model.Tools = []*genai.Tool{{FunctionDeclarations: declarations}}

	session := model.StartChat()
	resp, err := session.SendMessage(ctx, genai.Text(a.systemPrompt(userMessage)))
	if err != nil {
		return "", err
	}

	for round := 0; round < maxToolRounds; round++ {
		calls := functionCalls(resp)
		if len(calls) == 0 {
			return printResponse(resp), nil
		}

		parts := make([]genai.Part, 0, len(calls))
		for _, call := range calls {
			parts = append(parts, genai.FunctionResponse{
				Name:     call.Name,
				Response: a.tools.Call(ctx, call.Name, call.Args),
			})
		}
		resp, err = session.SendMessage(ctx, parts...)
		if err != nil {
			return "", err
		}
	}
	return printResponse(resp), nil
}

func functionCalls(resp *genai.GenerateContentResponse) []genai.FunctionCall {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	var calls []genai.FunctionCall
	for _, part := range resp.Candidates[0].Content.Parts {
		if fc, ok := part.(genai.FunctionCall); ok {
			calls = append(calls, fc)
		}
	}
	return calls
}

func printResponse(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "I completed the action."
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			return string(txt)
		}
	}
	return "I completed the action."
}
