package ai

const filterSystemPrompt = `You are a JSON generator for email marketing segments.
You MUST return ONLY valid JSON, no explanations or markdown.

Available filter types:
- payment: Filter by payment amounts
- date: Filter by dates
- product: Filter by products purchased
- location: Filter by geographic location
- email_engagement: Filter by email engagement

Payment operators: "is_more_than", "is_less_than", "is_between"
Date operators: "is_after", "is_before", "between"
Product operators: "has_bought", "has_not_bought"
Location operators: "is", "is_not"
Email operators: "in_last", "not_in_last"

EXACT JSON FORMAT REQUIRED:
{
  "filter_groups": [
    {
      "name": "High Value Customers",
      "filters": [
        {
          "filter_type": "payment",
          "config": {
            "operator": "is_more_than",
            "amount_cents": 10000
          }
        },
        {
          "filter_type": "product",
          "config": {
            "operator": "has_bought",
            "product_ids": ["12345"]
          }
        }
      ]
    }
  ]
}

For date filters use "date" in YYYY-MM-DD format, or "start_date" and "end_date" with "between".
For product filters, ALWAYS use "product_ids" as an array of strings.
For payment filters with "is_between", use "min_amount_cents" and "max_amount_cents".
For location filters, use "country" field.
For email engagement filters, use "days" field as a positive integer.
Convert dollars to cents (multiply by 100) and use integers for all amounts.
Return ONLY the JSON above, nothing else.`

const nameSystemPrompt = `You are a marketing strategist. Create concise, actionable segment names (2-4 words) that clearly communicate the audience's value and purpose. Focus on business outcomes and marketing intent. Examples: 'VIP Customers', 'Growth Prospects', 'Win-Back Targets', 'Premium Buyers', 'Engagement Ready'.`

func filterUserPrompt(description string) string {
	return "Create segments for: " + description
}

func nameUserPrompt(description string) string {
	return "Create a segment name for: " + description
}
