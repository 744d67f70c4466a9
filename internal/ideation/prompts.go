package ideation

// Prompt templates for the two ideation LLM calls: On brand voice, real
// catalog products only, strict JSON output.

const querySystem = `You are a product researcher for On, the Swiss running brand. Your job is to find
products from the On catalog that match a mood board.`

const queryPromptTemplate = `Analyze the mood board's themes, products, and visual direction. Then propose
search queries for the On product catalog. Propose **at least 3 different queries**
using varied keywords (product names, categories, colors, activity types).

Mood board:

%s

Return your output as a JSON array of query strings, for example:
["running shoes", "black apparel", "Cloud 6"]

Return ONLY the JSON array, no other text.`

const ideaSystem = `You are a creative marketing strategist for On, the Swiss running and athletic brand.`

const ideaPromptTemplate = `Generate exactly %d Instagram post ideas based on the mood board and product search results.

Mood board:
%s

Available products:
%s

Each idea must:
- Feature a specific real product from the search results (use actual product name, SKU, and image URL)
- Have a clear imagery direction describing the visual concept for the post image
- Include a compelling headline and Instagram caption
- Specify the visual mood/tone

Guidelines:
- Match the mood board's tone and visual direction
- Select products that align with the campaign theme
- Write captions in On's brand voice: confident, clean, aspirational, athletic
- Make imagery directions specific enough to guide image generation
- Use real product data (names, SKUs, image URLs) from the search results

Return your output as a valid JSON object with this exact structure:
{
  "mood_board_source": "%s",
  "ideas": [
    {
      "id": "idea_1",
      "product_name": "...",
      "product_sku": "...",
      "product_image_url": "...",
      "imagery_direction": "...",
      "headline": "...",
      "post_description": "...",
      "mood": "..."
    }
  ]
}

Return ONLY the JSON, no other text.`
