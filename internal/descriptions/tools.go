package descriptions

// Tool descriptions shown to MCP clients.

const (
	OrderListCustomersDescription = `List the customers that have extraction rules.

**When to use:** Before extracting an order, to find the exact customer name whose rules should be applied.

**Examples:**
• All customers: "Which customers have rules configured?"
• Fuzzy lookup: query "acm" finds "ACME Trading"

**Best practices:** Pass the returned name unchanged to order_get_rules or order_extract_file.`

	OrderGetRulesDescription = `Show the field rules of one customer as JSON.

**When to use:** To see which fields will be extracted for a customer and with which regular expressions.

**Output:** The rule document in field order, followed by any pattern that does not compile.

**Examples:**
• "What does the ACME rule set extract?"
• "Why is the delivery date column empty for globex?" → inspect the pattern

**Best practices:** Patterns use Go RE2 syntax. Lookarounds and backreferences are reported as invalid.`

	OrderCheckRulesDescription = `Validate a rule document without saving it.

**When to use:** While drafting rules for a new customer, or before asking an administrator to save edited rules.

**Input:** A JSON object mapping field names to regular expressions, e.g. {"PO": "PO\\s*(\\d+)"}.

**Output:** Either a parse error, the list of patterns that fail to compile, or confirmation that all patterns are valid.

**Best practices:** Use one capture group to return only part of a match. With several groups the captured parts are joined by a space.`

	OrderSearchDocumentsDescription = `Find purchase order PDFs in the document directory.

**When to use:** When the user names an order loosely ("the latest ACME PO") and the exact file path is needed for order_extract_file.

**Output:** Paths relative to the document directory, with size and modification time. Files over the size limit are left out.

**Examples:**
• "List all PDFs" → no query
• "Find po 118" → query "po118"`

	OrderExtractFileDescription = `Extract order fields from a PDF using a customer's rules.

**When to use:** To turn a purchase order PDF into a table of values, one column per rule field.

**How it works:**
1. The text layer of the PDF is read
2. If no text is found the pages are rendered and OCR'd
3. Each rule is applied to the whole text and every match becomes a row

**Examples:**
• "Extract orders/po-2024-118.pdf for ACME"
• "What quantities are in the latest globex order?"

**Best practices:** Paths are resolved inside the configured document directory. Rows are aligned by match position, so check the table when fields have different match counts.`

	OrderServerInfoDescription = `Show server version, configured directories, available customers and OCR settings.

**When to use:** At the start of a session, or when a tool reports that a file or customer cannot be found.`
)
