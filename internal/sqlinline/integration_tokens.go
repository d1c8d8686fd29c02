package sqlinline

// QSelectGeminiCredentials returns the stored key and the optional model
// recorded next to it.
const QSelectGeminiCredentials = `--sql 5b0f3e8c-91a4-4d2e-b7c6-3e1d9a0f4c27
select
    token,
    coalesce(properties->>'model', '') as model
from integration_tokens
where provider = $1::text;
`

const QUpsertIntegrationToken = `--sql e4c1a7d9-2b6f-4f80-9d35-8a7c0b1e6f52
insert into integration_tokens (id, provider, token, properties)
values (gen_random_uuid(), $1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb))
on conflict (provider) do update set
    token = excluded.token,
    properties = excluded.properties,
    updated_at = now();
`
