package mcpserver

// NoteFormatContract describes the Markdown files the pipeline writes so
// that LLM clients can read them and tick todo items safely.
const NoteFormatContract = `# Work Log Format Contract

The vault holds a daily notes directory and one directory per project.
Every generated file starts with YAML frontmatter carrying ` + "`tags`" + `.

## Daily note

Path: ` + "`Daily Notes/{YYYY-MM-DD}_{Project}.md`" + ` (` + "`_{HHMMSS}`" + ` is appended on collision).

` + "```" + `markdown
---
date: 2024-01-02
project: Saliency
tags: [daily, work-log, project/Saliency]
---

# Daily Log: 2024-01-02

## 📋 Summary
One paragraph.

## ✅ Completed Today
- Bullet

## 🚧 In Progress / Blockers
- Bullet

## 📝 Next Steps
- Bullet

## 💭 Thoughts & Ideas
- Bullet

---
*Generated from audio transcript on 2024-01-02 17:30:00*
` + "```" + `

## Todo list

Path: ` + "`{Project}/todo.md`" + `. Items are ordered high, medium, low and link
back to the daily note they came from:

` + "```" + `markdown
- [ ] 🔴 Task text _optional context_ *[[2024-01-02_Saliency|Source]]* 
` + "```" + `

Rules:

1. Tick an item by changing ` + "`- [ ]`" + ` to ` + "`- [x]`" + `. Do not edit the link.
2. Ticked items are moved into the next weekly summary and removed from the list.
3. 🔴 is high, 🟠 medium and 🟢 low priority.

## Weekly summary

Path: ` + "`{Project}/timeline/{YYYY}-W{ww}.md`" + `, one per ISO week, never rewritten.
Sections: 📊 Week Summary, 🎯 Key Accomplishments, 💭 Insights & Thoughts,
🚧 Progress Indicators, 📝 Next Week Focus, ✅ Completed Tasks (optional) and
📄 Daily Notes References. ` + "`{Project}/timeline/timeline_index.md`" + ` is rebuilt
from them and must not be edited by hand.
`
