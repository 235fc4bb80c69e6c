package delivery

// DefaultHTMLTemplate は画像配信モードの組み込み記事カードテンプレート。
// フィードごとにHTMLTemplateで上書きできる。
const DefaultHTMLTemplate = `<!DOCTYPE html>
<html lang="ja">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{title}}</title>
<style>
body {
    font-family: 'Hiragino Sans', 'Noto Sans JP', -apple-system, sans-serif;
    background-color: #f8f8f8;
    margin: 0;
    padding: 24px;
}
.card {
    max-width: 560px;
    margin: 0 auto;
    background: #ffffff;
    padding: 32px;
    border: 1px solid rgba(0,0,0,0.05);
    box-shadow: 0 16px 40px -12px rgba(0,0,0,0.1);
}
.header {
    display: flex;
    justify-content: space-between;
    align-items: baseline;
    border-bottom: 1px solid #f0f0f0;
    padding-bottom: 12px;
    margin-bottom: 24px;
}
.feed-name {
    font-weight: 700;
    font-size: 13px;
    letter-spacing: 0.12em;
    text-transform: uppercase;
    color: #1a1a1a;
}
.pub-date {
    font-size: 12px;
    color: #666666;
}
.title {
    font-size: 24px;
    font-weight: 700;
    line-height: 1.3;
    margin: 0 0 16px;
    color: #1a1a1a;
}
.summary {
    font-size: 14px;
    line-height: 1.7;
    color: #666666;
    margin-bottom: 20px;
}
.cover {
    width: 100%;
    max-height: 240px;
    object-fit: cover;
    margin-bottom: 20px;
}
.author {
    font-size: 13px;
    font-weight: 600;
    color: #444444;
}
</style>
</head>
<body>
<div class="card">
    <div class="header">
        <span class="feed-name">{{feedName}}</span>
        <span class="pub-date">{{pubDate}}</span>
    </div>
    {{#if image}}
    <img class="cover" src="{{image}}" alt="">
    {{/if}}
    <h1 class="title">{{title}}</h1>
    {{#if description}}
    <p class="summary">{{description}}</p>
    {{/if}}
    {{#if author}}
    <div class="author">{{author}}</div>
    {{/if}}
</div>
</body>
</html>`
