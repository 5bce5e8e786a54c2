package extract

const extractionSystemPrompt = `You are a precise data extraction assistant. ` +
	`You respond with JSON only, no prose and no markdown fences.`

const primaryPromptTemplate = `Extract structured information about the %s described on this page.

Page URL: %s

Return a single JSON object with these keys:
  name, start_date (YYYY-MM-DD), end_date (YYYY-MM-DD),
  registration_deadline (YYYY-MM-DD), registration_url, location, city,
  remote (boolean), description, short_description (one sentence),
  organizers (list of strings),
  speakers (list of {name, company, title}), sponsors (list of strings),
  themes (list of strings), ticket_prices (list of {label, price}),
  is_paid (boolean).

Use null for anything the page does not state. Do not guess dates.

Page content:
%s`

const simplifiedPromptTemplate = `Extract the basics of the %s on this page as a JSON object with keys:
  name, start_date (YYYY-MM-DD), end_date (YYYY-MM-DD), location, remote (boolean), description.

Use null for unknown values.

Page content:
%s`

const gapFillPromptTemplate = `The event "%s" is described below. Extract only the people and organizations involved.

Return a JSON object with keys:
  organizers (list of strings), speakers (list of {name, company, title}), sponsors (list of strings).

Use empty lists when the page names nobody.

Page content:
%s`

const validationPromptTemplate = `Does the following describe a real, specific %s (a single event with a name, not a listing page, blog post, or product page)?

Name: %s
Dates: %s to %s
Location: %s
Description: %s

Answer with exactly one word: YES or NO.`
