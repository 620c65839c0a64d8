package mcpserver

// NoteContract describes the canonical study-note shape that LLM consumers
// should follow when creating notes.
const NoteContract = `# Edunote Study Note Contract

Every study note stored in edunote SHOULD follow this structure.

## Structure

` + "```" + `markdown
# Topic title

One- or two-sentence summary of the concept in your own words.

## Key points

- Bullet the core facts or steps, one idea per bullet.
- Keep each bullet self-contained so it reads well during review.

## Example

A short worked example, code snippet, or concrete case.
` + "```" + `

## Rules

1. **Title first.** The first line is a ` + "`" + `#` + "`" + ` heading naming the topic; it doubles
   as the display title in lists.
2. **Summary before detail.** The opening paragraph restates the concept in the
   learner's own words. Reviews work best as active recall, so prefer
   prompts and questions over full prose transcription.
3. **Key points are bullets.** Lowercase Markdown bullets, one fact each.
4. **Keep notes atomic.** One concept per note; split composite topics into
   separate notes so each earns its own review schedule.
5. **Encoding** is UTF-8, standard Markdown, no HTML.

## Review behaviour

- A note's review schedule is seeded automatically at creation time
  (10 minutes, 1 day, 7 days, 30 days after creation by default).
- Only the earliest remaining checkpoint matters: a note is due once that
  checkpoint has passed, and ` + "`" + `complete_review` + "`" + ` consumes exactly one
  checkpoint per call.
- Once all checkpoints are consumed the note is done; it never becomes
  due again.

## Example

` + "```" + `markdown
# Dijkstra's algorithm

Finds shortest paths from a source in a weighted graph with non-negative
edges by greedily settling the closest unsettled vertex.

## Key points

- Maintains a priority queue keyed on tentative distance.
- Each vertex is settled at most once; settled distances are final.
- Fails on negative edge weights (use Bellman-Ford instead).

## Example

For graph A-1-B, A-4-C, B-2-C: dist(C) = 3 via B, not 4 direct.
` + "```" + `
`
